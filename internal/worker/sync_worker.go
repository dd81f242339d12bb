package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "travelbook:sync:queue"
	defaultDeadLetterKey = "travelbook:sync:deadletter"
)

// errPermanent marks task failures that retrying cannot fix.
var errPermanent = errors.New("permanent task failure")

// SyncWorker replays row-store writes that failed on the request path.
// Tasks are persisted in the relational sync queue when one is configured,
// and delivered through Redis or an in-process channel.
type SyncWorker struct {
	tasks         domain.TaskStore
	tables        *repository.Tables
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

// NewSyncWorker builds a worker. tasks and redisClient may be nil.
func NewSyncWorker(tasks domain.TaskStore, tables *repository.Tables, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *SyncWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &SyncWorker{
		tasks:         tasks,
		tables:        tables,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		pollInterval:  pollInterval,
		batchSize:     20,
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue persists task and schedules it for delivery.
func (w *SyncWorker) Enqueue(ctx context.Context, task models.SyncTask) error {
	switch task.TaskType {
	case models.TaskAppendRow, models.TaskUpdateRowID:
	default:
		return fmt.Errorf("unknown task type %q", task.TaskType)
	}
	if task.Table == "" || task.RowID == "" {
		return errors.New("task table and row id are required")
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = w.now().UTC()
	}

	if w.tasks != nil {
		if err := w.tasks.CreateSyncTask(ctx, &task); err != nil {
			return fmt.Errorf("persist sync task: %w", err)
		}
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, using in-memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
	}
	if w.tasks != nil {
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
		return nil
	}
	return fmt.Errorf("sync queue full, %s %s dropped", task.Table, task.RowID)
}

// Start runs the delivery loop until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.drainPending(ctx); n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *SyncWorker) drainPending(ctx context.Context) int {
	if w.tasks == nil {
		return 0
	}
	tasks, err := w.tasks.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	err := w.apply(ctx, task)
	switch {
	case err == nil:
		w.setStatus(ctx, task, models.TaskCompleted, "", nil)
		metrics.IncSyncTask(models.TaskCompleted)
		w.logger.Debug().Str("table", task.Table).Str("row_id", task.RowID).Msg("sync task applied")
	case errors.Is(err, errPermanent):
		w.fail(ctx, task, err)
	default:
		w.retryOrFail(ctx, task, err)
	}
}

func (w *SyncWorker) apply(ctx context.Context, task *models.SyncTask) error {
	columns, ok := models.Columns[task.Table]
	if !ok {
		return fmt.Errorf("%w: unknown table %s", errPermanent, task.Table)
	}
	values, err := models.DecodeCells(task.Payload)
	if err != nil {
		return fmt.Errorf("%w: decode payload: %v", errPermanent, err)
	}
	if len(values) != len(columns) {
		return fmt.Errorf("%w: %s expects %d cells, payload has %d", errPermanent, task.Table, len(columns), len(values))
	}

	switch task.TaskType {
	case models.TaskAppendRow:
		// A previous attempt may have landed before its acknowledgement was lost.
		_, err := w.tables.FindRowByID(ctx, task.Table, task.RowID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return w.tables.Store().AppendRow(ctx, task.Table, values)
	case models.TaskUpdateRowID:
		err := w.tables.UpdateByID(ctx, task.Table, task.RowID, values)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		return err
	default:
		return fmt.Errorf("%w: unknown task type %s", errPermanent, task.TaskType)
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.fail(ctx, task, cause)
		return
	}

	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	metrics.IncSyncTask(models.TaskRetry)
	w.logger.Warn().Err(cause).Str("table", task.Table).Str("row_id", task.RowID).Int("attempt", attempt).
		Time("next_retry_at", next).Msg("sync task failed, will retry")

	if w.tasks != nil {
		w.setStatus(ctx, task, models.TaskRetry, cause.Error(), &next)
		return
	}

	// Without a persistent queue the retry lives in memory only.
	retry := *task
	retry.RetryCount = attempt
	retry.Status = models.TaskRetry
	time.AfterFunc(time.Until(next), func() {
		select {
		case w.queue <- retry:
		default:
			w.logger.Error().Str("table", retry.Table).Str("row_id", retry.RowID).Msg("in-memory queue full, retry dropped")
		}
	})
}

func (w *SyncWorker) fail(ctx context.Context, task *models.SyncTask, cause error) {
	w.setStatus(ctx, task, models.TaskFailed, cause.Error(), nil)
	metrics.IncSyncTask(models.TaskFailed)
	w.logger.Error().Err(cause).Str("table", task.Table).Str("row_id", task.RowID).Msg("sync task dead-lettered")

	if w.redis == nil {
		return
	}
	dead := *task
	dead.Status = models.TaskFailed
	msg := cause.Error()
	dead.LastError = &msg
	if err := w.pushRedis(ctx, w.deadLetterKey, dead); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead-letter push")
	}
}

func (w *SyncWorker) setStatus(ctx context.Context, task *models.SyncTask, status, errMsg string, next *time.Time) {
	if w.tasks == nil || task.ID == 0 {
		return
	}
	if err := w.tasks.UpdateSyncTaskStatus(ctx, task.ID, status, errMsg, next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Str("status", status).Msg("update sync task status")
	}
}

func (w *SyncWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
