// Package pzdb persists photoz runs: trained model blobs, run
// configuration, and per-source estimation results, in a sqlite
// database with a migration-managed schema.
package pzdb

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB wraps the run-store database handle.
type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the run store at path. The schema is managed
// by migrations; call MigrateUp before first use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("pzdb: open %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// AttachAdminRoutes mounts the debug SQL console on the mux. Intended
// for local diagnosis only; the handlers have no auth.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Photoz run store",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
