// Package postgres provides PostgreSQL implementations of the store
// interfaces plus the task queue's durable backend. Schema management is
// handled by embedded goose migrations via RunMigrations.
package postgres
