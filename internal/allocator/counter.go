package allocator

import (
	"context"
	"sync"

	"travelbook/internal/domain"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

// Counter allocates from a monotonic sequence per (table, prefix). Each key
// is seeded once from a table scan; afterwards no table read is needed.
// When the sequence fails the scan allocator serves the request and the key
// is re-seeded on its next use.
type Counter struct {
	seq    domain.Sequence
	scan   *Scan
	logger *zerolog.Logger

	mu     sync.Mutex
	floors map[string]int64
}

func NewCounter(seq domain.Sequence, scan *Scan, logger *zerolog.Logger) *Counter {
	return &Counter{
		seq:    seq,
		scan:   scan,
		logger: logger,
		floors: make(map[string]int64),
	}
}

func (c *Counter) Allocate(ctx context.Context, spec models.IDSpec) (string, error) {
	key := spec.Table + ":" + spec.Prefix

	floor, seeded := c.floor(key)
	if !seeded {
		rows, err := c.scan.store.ReadTable(ctx, spec.Table)
		if err != nil {
			return "", err
		}
		_, floor = HighWaterMark(rows, spec.Table, spec.Prefix)
	}

	n, err := c.seq.Next(ctx, key, floor)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.StoreError("allocate", spec.Table, err)
		}
		c.logger.Warn().Err(err).Str("table", spec.Table).Msg("sequence unavailable, falling back to table scan")
		metrics.IncAllocationFallback(spec.Table)
		c.forget(key)
		return c.scan.Allocate(ctx, spec)
	}

	c.remember(key, n)
	return models.FormatID(spec.Prefix, n, spec.Width), nil
}

// Reconcile drops every seed so the next allocation re-reads its table.
func (c *Counter) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floors = make(map[string]int64)
}

func (c *Counter) floor(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.floors[key]
	return n, ok
}

func (c *Counter) remember(key string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.floors[key] {
		c.floors[key] = n
	}
}

func (c *Counter) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.floors, key)
}
