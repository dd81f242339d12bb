package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// FileStore is a row store over a local workbook, one worksheet per table.
// Every write is saved to disk before returning. It is meant for a single process.
type FileStore struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

// Open loads the workbook at path, creating it with every known table when absent.
func Open(path string) (*FileStore, error) {
	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workbook directory: %w", err)
		}
		f = excelize.NewFile()
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("failed to create workbook: %w", err)
		}
	} else {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
	}

	s := &FileStore{path: path, file: f}
	for _, table := range models.TableNames() {
		if err := s.EnsureTable(context.Background(), table, models.Columns[table]); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, err := f.GetSheetIndex(defaultSheet); err == nil && idx >= 0 && len(f.GetSheetList()) > 1 {
		if err := f.DeleteSheet(defaultSheet); err == nil {
			_ = f.Save()
		}
	}
	return s, nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// EnsureTable creates the worksheet and header row when missing.
func (s *FileStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.file.GetSheetIndex(table)
	if err != nil {
		return domain.StoreError("describe", table, err)
	}
	if idx >= 0 {
		return nil
	}
	if _, err := s.file.NewSheet(table); err != nil {
		return domain.StoreError("create", table, err)
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := s.file.SetSheetRow(table, "A1", &header); err != nil {
		return domain.StoreError("header", table, err)
	}
	return domain.StoreError("save", table, s.file.Save())
}

func (s *FileStore) ReadTable(ctx context.Context, table string) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("read", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.file.GetRows(table)
	if err != nil {
		return nil, domain.StoreError("read", table, err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	header := all[0]
	rows := make([]models.Row, 0, len(all)-1)
	for i, cells := range all[1:] {
		rows = append(rows, models.NewRow(i, header, cells))
	}
	return rows, nil
}

func (s *FileStore) AppendRow(ctx context.Context, table string, values []interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("append", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.file.GetRows(table)
	if err != nil {
		return domain.StoreError("append", table, err)
	}
	next := len(all) - models.HeaderRows
	if next < 0 {
		next = 0
	}
	return domain.StoreError("append", table, s.writeRow(table, next, toCells(values)))
}

func (s *FileStore) UpdateRow(ctx context.Context, table string, index int, values []interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("update", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(table, index); err != nil {
		return domain.StoreError("update", table, err)
	}
	return domain.StoreError("update", table, s.writeRow(table, index, toCells(values)))
}

// DeleteRow blanks the row in place.
func (s *FileStore) DeleteRow(ctx context.Context, table string, index int) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("delete", table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(table, index); err != nil {
		return domain.StoreError("delete", table, err)
	}
	width := len(models.Columns[table])
	if width == 0 {
		width = 1
	}
	blank := make([]interface{}, width)
	for i := range blank {
		blank[i] = ""
	}
	return domain.StoreError("delete", table, s.writeRow(table, index, blank))
}

func (s *FileStore) checkIndex(table string, index int) error {
	all, err := s.file.GetRows(table)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(all)-models.HeaderRows {
		return fmt.Errorf("row index %d out of range", index)
	}
	return nil
}

func (s *FileStore) writeRow(table string, index int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, models.SheetRow(index))
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(table, cell, &cells); err != nil {
		return err
	}
	return s.file.Save()
}

func toCells(values []interface{}) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = models.CellString(v)
	}
	return cells
}
