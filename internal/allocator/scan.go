package allocator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

const reservationTTL = 30 * time.Second

// Scan derives the next identifier by reading the whole table and taking the
// high-water mark plus one. Candidates handed out by this process stay
// reserved until they show up in the table or expire, and later callers skip
// past them; a candidate already present in the table makes the caller back
// off and re-read. There is no protection against another process appending
// between read and write.
type Scan struct {
	store      domain.RowStore
	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
	logger     *zerolog.Logger

	mu       sync.Mutex
	reserved map[string]map[int64]time.Time
	rnd      *rand.Rand
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Scan)

func WithMaxRetries(n int) Option {
	return func(s *Scan) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithBackoff(min, max time.Duration) Option {
	return func(s *Scan) {
		if min > 0 && max >= min {
			s.backoffMin, s.backoffMax = min, max
		}
	}
}

func NewScan(store domain.RowStore, logger *zerolog.Logger, opts ...Option) *Scan {
	s := &Scan{
		store:      store,
		maxRetries: models.DefaultAllocationRetries,
		backoffMin: 10 * time.Millisecond,
		backoffMax: 50 * time.Millisecond,
		logger:     logger,
		reserved:   make(map[string]map[int64]time.Time),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scan) Allocate(ctx context.Context, spec models.IDSpec) (string, error) {
	for attempt := 1; ; attempt++ {
		rows, err := s.store.ReadTable(ctx, spec.Table)
		if err != nil {
			return "", err
		}
		observed, maxNum := HighWaterMark(rows, spec.Table, spec.Prefix)

		candidate, ok := s.claim(spec, observed, maxNum)
		if ok {
			return candidate, nil
		}

		metrics.IncAllocationRetry(spec.Table)
		s.logger.Debug().Str("table", spec.Table).Str("candidate", candidate).Int("attempt", attempt).Msg("id collision")
		if attempt >= s.maxRetries {
			break
		}
		if err := s.sleep(ctx, s.jitter()); err != nil {
			return "", domain.StoreError("allocate", spec.Table, err)
		}
	}
	return "", domain.Errorf(domain.ErrAllocationExhausted, "could not allocate a %s id after %d attempts", spec.Table, s.maxRetries)
}

// claim reserves the number after both the table's high-water mark and
// every live reservation, so an ID that was handed out but never written
// only leaves a gap. It reports false when the candidate is already in the
// table.
func (s *Scan) claim(spec models.IDSpec, observed map[string]struct{}, maxNum int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := spec.Table + ":" + spec.Prefix
	pending := s.reserved[key]
	if pending == nil {
		pending = make(map[int64]time.Time)
		s.reserved[key] = pending
	}

	now := s.now()
	next := maxNum + 1
	for n, at := range pending {
		if n <= maxNum || now.Sub(at) > reservationTTL {
			delete(pending, n)
			continue
		}
		if n >= next {
			next = n + 1
		}
	}

	candidate := models.FormatID(spec.Prefix, next, spec.Width)
	if _, taken := observed[candidate]; taken {
		return candidate, false
	}
	pending[next] = now
	return candidate, true
}

func (s *Scan) jitter() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := int64(s.backoffMax - s.backoffMin)
	if span <= 0 {
		return s.backoffMin
	}
	return s.backoffMin + time.Duration(s.rnd.Int63n(span+1))
}

// HighWaterMark collects the identifiers of rows carrying prefix and the
// largest numeric suffix among them. Unparsable suffixes are ignored.
func HighWaterMark(rows []models.Row, table, prefix string) (map[string]struct{}, int64) {
	key := models.KeyColumn(table)
	observed := make(map[string]struct{}, len(rows))
	var maxNum int64
	for _, r := range rows {
		id := r.Get(key)
		if id == "" || len(id) < len(prefix) || id[:len(prefix)] != prefix {
			continue
		}
		observed[id] = struct{}{}
		if n, ok := models.ParseIDNumber(id, prefix); ok && n > maxNum {
			maxNum = n
		}
	}
	return observed, maxNum
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
