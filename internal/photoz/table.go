// Package photoz implements the photometric-redshift estimation pipeline:
// feature encoding of per-band photometry, train/validation partitioning,
// cost-sensitive sample weighting, model training orchestration, and
// chunked posterior inference.
package photoz

import (
	"fmt"
)

// Table is a column-aligned photometry catalog (or a chunk of one).
// Columns are keyed by identifier (band magnitudes, magnitude errors,
// and optionally a spectroscopic redshift column) and all share the
// same row count.
type Table struct {
	columns map[string][]float64
	rows    int
}

// NewTable creates an empty table. The row count is fixed by the first
// column added.
func NewTable() *Table {
	return &Table{columns: make(map[string][]float64)}
}

// AddColumn attaches a named column. Every column must match the row
// count established by the first one.
func (t *Table) AddColumn(name string, values []float64) error {
	if _, ok := t.columns[name]; ok {
		return fmt.Errorf("table: duplicate column %q", name)
	}
	if len(t.columns) > 0 && len(values) != t.rows {
		return fmt.Errorf("table: column %q has %d rows, want %d", name, len(values), t.rows)
	}
	t.rows = len(values)
	t.columns[name] = values
	return nil
}

// Column returns the named column.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("table: no column %q", name)
	}
	return col, nil
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// NumRows returns the shared row count.
func (t *Table) NumRows() int {
	return t.rows
}

// ColumnNames returns the set of column identifiers (unordered).
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for name := range t.columns {
		names = append(names, name)
	}
	return names
}

// Slice returns a view of rows [start, end). The underlying column
// storage is shared with the parent table.
func (t *Table) Slice(start, end int) (*Table, error) {
	if start < 0 || end > t.rows || start > end {
		return nil, fmt.Errorf("table: slice [%d, %d) out of range for %d rows", start, end, t.rows)
	}
	out := &Table{columns: make(map[string][]float64, len(t.columns)), rows: end - start}
	for name, col := range t.columns {
		out.columns[name] = col[start:end]
	}
	return out, nil
}
