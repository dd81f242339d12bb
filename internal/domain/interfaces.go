package domain

import (
	"context"
	"time"

	"travelbook/internal/models"
)

// RowStore is uniform access to named tables stored as header plus rows.
// Row indices are 0-based data indices; adapters translate them with models.SheetRow.
// There are no transactions and reads after writes are eventually consistent.
type RowStore interface {
	ReadTable(ctx context.Context, table string) ([]models.Row, error)
	AppendRow(ctx context.Context, table string, values []interface{}) error
	UpdateRow(ctx context.Context, table string, index int, values []interface{}) error
	DeleteRow(ctx context.Context, table string, index int) error
}

// TableInitializer is implemented by stores that can create a table and write its header.
type TableInitializer interface {
	EnsureTable(ctx context.Context, table string, columns []string) error
}

// IDAllocator hands out prefixed sequential identifiers per table.
type IDAllocator interface {
	Allocate(ctx context.Context, spec models.IDSpec) (string, error)
}

// UserStore is the relational user store.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UserIDs(ctx context.Context) (map[string]struct{}, error)
	BeginUserTx(ctx context.Context) (UserTx, error)
}

// UserTx is an open relational transaction for the registration saga.
type UserTx interface {
	InsertUser(ctx context.Context, user *models.User) error
	Commit() error
	Rollback() error
}

// LoginRecorder persists a successful login on the relational side.
type LoginRecorder interface {
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskQueue accepts row-store writes to retry in the background.
type TaskQueue interface {
	Enqueue(ctx context.Context, task models.SyncTask) error
}

// TaskStore persists bookkeeping tasks.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Sequence is an atomic counter keyed by table and prefix. Next returns a
// value strictly greater than both the previous value and floor.
type Sequence interface {
	Next(ctx context.Context, key string, floor int64) (int64, error)
}
