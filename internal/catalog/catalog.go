// Package catalog reads and writes photometry catalogs stored as
// sqlite tables, one REAL column per band/error/redshift identifier,
// and generates synthetic catalogs for demos and tests.
package catalog

import (
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/photoz/internal/photoz"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens (or creates) a catalog database file.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	return db, nil
}

// ReadTable loads the named columns of a catalog table, row-aligned,
// ordered by rowid. SQL NULLs become NaN so non-detections survive the
// round trip.
func ReadTable(db *sql.DB, table string, columns []string) (*photoz.Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("catalog: no columns requested")
	}
	if err := checkIdentifiers(append([]string{table}, columns...)); err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM "%s" ORDER BY rowid`,
		strings.Join(quoted, ", "), table))
	if err != nil {
		return nil, fmt.Errorf("catalog: query %s: %w", table, err)
	}
	defer rows.Close()

	values := make([][]float64, len(columns))
	scan := make([]sql.NullFloat64, len(columns))
	dest := make([]any, len(columns))
	for i := range scan {
		dest[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("catalog: scan %s: %w", table, err)
		}
		for i, v := range scan {
			if v.Valid {
				values[i] = append(values[i], v.Float64)
			} else {
				values[i] = append(values[i], math.NaN())
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", table, err)
	}

	tbl := photoz.NewTable()
	for i, c := range columns {
		if err := tbl.AddColumn(c, values[i]); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}
	return tbl, nil
}

// WriteTable persists the named columns of a photometry table,
// creating the sqlite table if needed. NaN values are stored as NULL.
func WriteTable(db *sql.DB, table string, tbl *photoz.Table, columns []string) error {
	if err := checkIdentifiers(append([]string{table}, columns...)); err != nil {
		return err
	}

	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = `"` + c + `" REAL`
		quoted[i] = `"` + c + `"`
		marks[i] = "?"
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`,
		table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("catalog: create %s: %w", table, err)
	}

	cols := make([][]float64, len(columns))
	for i, c := range columns {
		col, err := tbl.Column(c)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		cols[i] = col
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin write: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		table, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("catalog: prepare insert: %w", err)
	}
	defer stmt.Close()

	for r := 0; r < tbl.NumRows(); r++ {
		args := make([]any, len(columns))
		for i := range columns {
			if math.IsNaN(cols[i][r]) {
				args[i] = nil
			} else {
				args[i] = cols[i][r]
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: insert row %d: %w", r, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit write: %w", err)
	}
	return nil
}

func checkIdentifiers(names []string) error {
	for _, n := range names {
		if !identPattern.MatchString(n) {
			return fmt.Errorf("catalog: invalid identifier %q", n)
		}
	}
	return nil
}
