package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is used for calendar dates (check-in, check-out, date of birth).
const DateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// Row is one data row of a table as read from the row store.
// Index is the 0-based data row index (header excluded).
type Row struct {
	Index  int
	Fields map[string]string
}

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// Empty reports whether every cell of the row is blank (a cleared row).
func (r Row) Empty() bool {
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// NewRow maps positional cell values onto header names. Missing trailing
// cells become empty strings.
func NewRow(index int, header []string, cells []string) Row {
	fields := make(map[string]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if i < len(cells) {
			fields[name] = cells[i]
		} else {
			fields[name] = ""
		}
	}
	return Row{Index: index, Fields: fields}
}

// FormatTime renders a timestamp for storage.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatDate renders a calendar date for storage.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatMoney renders an amount with two decimals.
func FormatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// RoundMoney rounds to whole cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseTime accepts the layouts the sheets have historically carried.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// fieldReader decodes typed values from a Row, keeping the first error.
type fieldReader struct {
	row Row
	err error
}

func newReader(r Row) *fieldReader {
	return &fieldReader{row: r}
}

func (f *fieldReader) fail(column string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("row %d: column %s: %w", f.row.Index, column, err)
	}
}

func (f *fieldReader) str(column string) string {
	return f.row.Get(column)
}

func (f *fieldReader) required(column string) string {
	v := f.row.Get(column)
	if v == "" {
		f.fail(column, fmt.Errorf("value is empty"))
	}
	return v
}

func (f *fieldReader) float(column string) float64 {
	v := f.required(column)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.fail(column, err)
	}
	return n
}

func (f *fieldReader) optFloat(column string) float64 {
	if f.row.Get(column) == "" {
		return 0
	}
	return f.float(column)
}

func (f *fieldReader) int(column string) int {
	v := f.required(column)
	if v == "" {
		return 0
	}
	// Sheets may render integers as "2.0".
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.fail(column, err)
		return 0
	}
	return int(n)
}

func (f *fieldReader) optInt(column string) int {
	if f.row.Get(column) == "" {
		return 0
	}
	return f.int(column)
}

func (f *fieldReader) time(column string) time.Time {
	v := f.required(column)
	if v == "" {
		return time.Time{}
	}
	t, err := ParseTime(v)
	if err != nil {
		f.fail(column, err)
	}
	return t
}

func (f *fieldReader) optTime(column string) *time.Time {
	if f.row.Get(column) == "" {
		return nil
	}
	t := f.time(column)
	return &t
}

// CellString renders a value the way the stores persist it.
func CellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return FormatTime(t)
	default:
		return fmt.Sprint(t)
	}
}
