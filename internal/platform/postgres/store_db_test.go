package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/platform/postgres"
	"github.com/fablebot/fable-api/internal/store"
	"github.com/fablebot/fable-api/internal/task"
	"github.com/fablebot/fable-api/internal/testutils"
)

const testCipherKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// testDB holds a shared connection for all tests in this package.
var testDB *sql.DB

// TestMain connects once and runs migrations once for all tests. Without a
// test database the suite still runs; DB-backed tests skip themselves.
func TestMain(m *testing.M) {
	if !testutils.IsIntegrationTestEnvironment() {
		os.Exit(m.Run())
	}

	var err error
	testDB, err = sql.Open("pgx", os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Printf("Failed to open database connection: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := testDB.PingContext(ctx); err != nil {
		fmt.Printf("Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(testDB); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = testDB.Close()
	os.Exit(code)
}

func cleanTables(t *testing.T) {
	t.Helper()

	if testDB == nil {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	for _, table := range []string{"threads", "credentials", "tasks"} {
		_, err := testDB.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func TestThreadStoreSaveAndGet(t *testing.T) {
	cleanTables(t)

	s := postgres.NewPostgresThreadStore(testDB)
	ctx := context.Background()

	threadID := domain.ThreadID("123", "456")

	// New thread is not found before the first save.
	_, err := s.GetThread(ctx, threadID)
	assert.ErrorIs(t, err, store.ErrThreadNotFound)

	first := []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi there"},
	}
	require.NoError(t, s.SaveThread(ctx, threadID, first, domain.ThreadTypeChat))

	got, err := s.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, threadID, got.ID)
	assert.Equal(t, domain.ThreadTypeChat, got.Type)
	assert.Equal(t, first, got.Messages)

	// A second save replaces the history outright.
	replacement := []domain.Message{
		{Role: domain.RoleSystem, Content: "guidance"},
		{Role: domain.RoleUser, Content: "again"},
	}
	require.NoError(t, s.SaveThread(ctx, threadID, replacement, domain.ThreadTypeStory))

	got, err = s.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadTypeStory, got.Type)
	assert.Equal(t, replacement, got.Messages)
}

func TestThreadStoreRejectsInvalidInput(t *testing.T) {
	cleanTables(t)

	s := postgres.NewPostgresThreadStore(testDB)
	ctx := context.Background()

	err := s.SaveThread(ctx, "", nil, domain.ThreadTypeChat)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	err = s.SaveThread(ctx, "123-456", nil, domain.ThreadType("picnic"))
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	err = s.SaveThread(ctx, "123-456", []domain.Message{{Role: "narrator", Content: "x"}}, domain.ThreadTypeChat)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestCredentialStoreSaveAndGet(t *testing.T) {
	cleanTables(t)

	s, err := postgres.NewPostgresCredentialStore(testDB, testCipherKeyHex)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.GetAPIKey(ctx, "123")
	assert.ErrorIs(t, err, store.ErrCredentialNotFound)

	require.NoError(t, s.SaveAPIKey(ctx, "123", "sk-first-key"))

	key, err := s.GetAPIKey(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "sk-first-key", key)

	// Saving again overwrites.
	require.NoError(t, s.SaveAPIKey(ctx, "123", "sk-second-key"))
	key, err = s.GetAPIKey(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "sk-second-key", key)

	// The database row never holds the plaintext.
	var sealed []byte
	require.NoError(t, testDB.QueryRow("SELECT api_key_sealed FROM credentials WHERE user_id = $1", "123").Scan(&sealed))
	assert.False(t, strings.Contains(string(sealed), "sk-second-key"))
}

func TestTaskStoreLifecycle(t *testing.T) {
	cleanTables(t)

	s := postgres.NewPostgresTaskStore(testDB)
	ctx := context.Background()

	record := task.NewRecord(task.NewDescriptor(
		task.ActionHandleStoryCommand, "123-456", "a pirate adventure", "spaces/456/messages/789"))
	require.NoError(t, s.SaveTask(ctx, record))

	pending, err := s.GetPendingTasks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, record.ID, pending[0].ID)
	assert.Equal(t, record.Descriptor, pending[0].Descriptor)

	require.NoError(t, s.UpdateTaskStatus(ctx, record.ID, task.StatusDelivering, ""))

	pending, err = s.GetPendingTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	delivering, err := s.GetDeliveringTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, delivering, 1)

	// Age filter excludes freshly updated tasks.
	stale, err := s.GetDeliveringTasks(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, s.UpdateTaskStatus(ctx, record.ID, task.StatusFailed, "worker unreachable"))

	delivering, err = s.GetDeliveringTasks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, delivering)
}
