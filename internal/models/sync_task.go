package models

import (
	"encoding/json"
	"time"
)

// Bookkeeping task kinds.
const (
	TaskAppendRow   = "append_row"
	TaskUpdateRowID = "update_row_by_id"
)

// Bookkeeping task statuses.
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// SyncTask is a queued row-store write that failed on the request path and is
// retried in the background.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	Table       string     `json:"table"`
	RowID       string     `json:"row_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// EncodeCells renders row values as the JSON array of cell strings carried in
// SyncTask.Payload.
func EncodeCells(values []interface{}) (string, error) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = CellString(v)
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCells reads a payload written by EncodeCells back into row values.
func DecodeCells(payload string) ([]interface{}, error) {
	var cells []string
	if err := json.Unmarshal([]byte(payload), &cells); err != nil {
		return nil, err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return values, nil
}
