package repository

import (
	"context"
	"fmt"
	"sync"

	"travelbook/internal/domain"
	"travelbook/internal/models"
)

// MemoryStore is a process-local row store. It backs tests and the
// "memory" backend and mirrors sheet semantics: deletes clear a row in place.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	header []string
	rows   [][]string
}

// NewMemoryStore creates a store with every known table and its header.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{tables: make(map[string]*memoryTable)}
	for table, columns := range models.Columns {
		s.tables[table] = &memoryTable{header: append([]string(nil), columns...)}
	}
	return s
}

func (s *MemoryStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = &memoryTable{header: append([]string(nil), columns...)}
	}
	return nil
}

func (s *MemoryStore) ReadTable(ctx context.Context, table string) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("read", table, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, domain.StoreError("read", table, fmt.Errorf("unknown table"))
	}
	rows := make([]models.Row, 0, len(t.rows))
	for i, cells := range t.rows {
		rows = append(rows, models.NewRow(i, t.header, cells))
	}
	return rows, nil
}

func (s *MemoryStore) AppendRow(ctx context.Context, table string, values []interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("append", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return domain.StoreError("append", table, fmt.Errorf("unknown table"))
	}
	t.rows = append(t.rows, toCells(values))
	return nil
}

func (s *MemoryStore) UpdateRow(ctx context.Context, table string, index int, values []interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("update", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.rowAt(table, index)
	if err != nil {
		return domain.StoreError("update", table, err)
	}
	t.rows[index] = toCells(values)
	return nil
}

func (s *MemoryStore) DeleteRow(ctx context.Context, table string, index int) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("delete", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.rowAt(table, index)
	if err != nil {
		return domain.StoreError("delete", table, err)
	}
	t.rows[index] = make([]string, len(t.header))
	return nil
}

// Len returns the number of physical rows in a table, cleared rows included.
func (s *MemoryStore) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

func (s *MemoryStore) rowAt(table string, index int) (*memoryTable, error) {
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table")
	}
	if index < 0 || index >= len(t.rows) {
		return nil, fmt.Errorf("row index %d out of range", index)
	}
	return t, nil
}

func toCells(values []interface{}) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = models.CellString(v)
	}
	return cells
}
