package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fablebot/fable-api/internal/service/auth"
)

// DispatcherConfig holds configuration for the task dispatcher.
type DispatcherConfig struct {
	// WorkerURL is the execution endpoint tasks are pushed to.
	WorkerURL string

	// WorkerCount determines how many concurrent delivery workers run.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory queue.
	QueueSize int

	// DeliveryTimeout bounds a single push to the execution endpoint.
	DeliveryTimeout time.Duration

	// MaxAttempts is how many deliveries are tried before a task is failed.
	MaxAttempts int

	// RetryBackoff is the wait between delivery attempts for one task.
	RetryBackoff time.Duration

	// StuckTaskAge defines how long a task can sit in the delivering state
	// before it is considered stuck and reset.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:            2,
		QueueSize:              100,
		DeliveryTimeout:        5 * time.Minute,
		MaxAttempts:            3,
		RetryBackoff:           5 * time.Second,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// Dispatcher persists tasks and pushes them to the execution endpoint. Every
// delivery carries a freshly minted identity token; the endpoint re-verifies
// it before acting, so the queue and the webhook share one auth model.
type Dispatcher struct {
	store      Store
	minter     auth.TokenMinter
	httpClient *http.Client
	taskChan   chan *Record
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     DispatcherConfig
	logger     *slog.Logger
}

var _ Enqueuer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. A nil httpClient gets a client bounded
// by the configured delivery timeout.
func NewDispatcher(
	store Store,
	minter auth.TokenMinter,
	config DispatcherConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *Dispatcher {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DeliveryTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		store:      store,
		minter:     minter,
		httpClient: httpClient,
		taskChan:   make(chan *Record, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
	}
}

// Enqueue validates and persists the descriptor, then hands it to the
// delivery workers. Persistence happens first so a crash between the two
// steps loses nothing; Recover picks the task back up.
func (d *Dispatcher) Enqueue(ctx context.Context, desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("invalid task descriptor: %w", err)
	}

	record := NewRecord(desc)
	if err := d.store.SaveTask(ctx, record); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	select {
	case d.taskChan <- record:
		return nil
	default:
		// Queue is full; Recover or the stuck monitor will pick it up.
		d.logger.Warn("task queue full, leaving task for recovery",
			"task_id", record.ID,
			"action", desc.Action)
		return nil
	}
}

// Start recovers unfinished tasks and launches the delivery workers.
func (d *Dispatcher) Start() error {
	if err := d.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.wg.Add(1)
	go d.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the dispatcher.
func (d *Dispatcher) Stop() {
	d.cancelFunc()
	d.wg.Wait()
	close(d.taskChan)
}

// Recover requeues tasks left unfinished by a previous run: pending tasks
// as-is, and delivering tasks reset back to pending.
func (d *Dispatcher) Recover() error {
	ctx := context.Background()

	pending, err := d.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	delivering, err := d.store.GetDeliveringTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get delivering tasks: %w", err)
	}

	d.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"delivering_count", len(delivering))

	for _, record := range pending {
		d.requeue(record)
	}

	for _, record := range delivering {
		if err := d.store.UpdateTaskStatus(ctx, record.ID, StatusPending, "Reset after recovery"); err != nil {
			d.logger.Error("failed to reset delivering task",
				"task_id", record.ID,
				"error", err)
			continue
		}
		record.Status = StatusPending
		d.requeue(record)
	}

	return nil
}

// requeue places a record back on the in-memory queue if there is room.
func (d *Dispatcher) requeue(record *Record) {
	select {
	case d.taskChan <- record:
	default:
		d.logger.Error("failed to requeue task, queue is full",
			"task_id", record.ID,
			"action", record.Descriptor.Action)
	}
}

// worker delivers tasks from the queue until the dispatcher stops.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("starting delivery worker", "worker_id", id)

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("stopping delivery worker", "worker_id", id)
			return

		case record, ok := <-d.taskChan:
			if !ok {
				return
			}
			d.deliverWithRetry(record, id)
		}
	}
}

// deliverWithRetry pushes one task, retrying on failure up to the configured
// attempt limit.
func (d *Dispatcher) deliverWithRetry(record *Record, workerID int) {
	ctx := context.Background()
	log := d.logger.With(
		"task_id", record.ID,
		"action", record.Descriptor.Action,
		"worker_id", workerID,
	)

	if err := d.store.UpdateTaskStatus(ctx, record.ID, StatusDelivering, ""); err != nil {
		log.Error("failed to mark task delivering", "error", err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		lastErr = d.deliver(ctx, record)
		if lastErr == nil {
			log.Info("task delivered", "attempt", attempt)
			if err := d.store.UpdateTaskStatus(ctx, record.ID, StatusCompleted, ""); err != nil {
				log.Error("failed to mark task completed", "error", err)
			}
			return
		}

		log.Warn("task delivery attempt failed",
			"attempt", attempt,
			"error", lastErr)

		if attempt < d.config.MaxAttempts {
			select {
			case <-d.ctx.Done():
				// Shutting down; leave the task delivering for recovery.
				return
			case <-time.After(d.config.RetryBackoff):
			}
		}
	}

	log.Error("task delivery abandoned", "attempts", d.config.MaxAttempts, "error", lastErr)
	if err := d.store.UpdateTaskStatus(ctx, record.ID, StatusFailed, lastErr.Error()); err != nil {
		log.Error("failed to mark task failed", "error", err)
	}
}

// deliver performs a single push to the execution endpoint. Any non-2xx
// response is a failed attempt.
func (d *Dispatcher) deliver(ctx context.Context, record *Record) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.DeliveryTimeout)
	defer cancel()

	token, err := d.minter.Mint(ctx)
	if err != nil {
		return fmt.Errorf("failed to mint delivery token: %w", err)
	}

	body, err := json.Marshal(record.Descriptor)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WorkerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("execution endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// stuckTaskMonitor periodically resets tasks that have been delivering for
// too long, requeuing them for another attempt.
func (d *Dispatcher) stuckTaskMonitor() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuck, err := d.store.GetDeliveringTasks(ctx, d.config.StuckTaskAge)
			if err != nil {
				d.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuck) == 0 {
				continue
			}

			d.logger.Info("found stuck tasks", "count", len(stuck))
			for _, record := range stuck {
				if err := d.store.UpdateTaskStatus(ctx, record.ID, StatusPending,
					"Reset after being stuck in delivering state"); err != nil {
					d.logger.Error("failed to reset stuck task",
						"task_id", record.ID,
						"error", err)
					continue
				}
				record.Status = StatusPending
				d.requeue(record)
			}
		}
	}
}
