// Package inmemdb keeps every table in memory. It backs the tests and local demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

type (
	snapshotKey struct {
		templateID string
		version    int
	}

	tables struct {
		templates map[string]template.Template
		snapshots map[snapshotKey]template.Snapshot
		grants    map[string]grant.Grant
		responses map[string]response.Response
		subjects  map[string]subject.Context
	}

	// DB serialises every operation with one mutex; a transaction holds it until it ends.
	DB struct {
		mutex sync.Mutex
		t     tables
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		t: tables{
			templates: make(map[string]template.Template),
			snapshots: make(map[snapshotKey]template.Snapshot),
			grants:    make(map[string]grant.Grant),
			responses: make(map[string]response.Response),
			subjects:  make(map[string]subject.Context),
		},
	}
}

// copy returns a copy of the tables. Stored rows are values and are never modified in place.
func (t tables) copy() tables {
	c := tables{
		templates: make(map[string]template.Template, len(t.templates)),
		snapshots: make(map[snapshotKey]template.Snapshot, len(t.snapshots)),
		grants:    make(map[string]grant.Grant, len(t.grants)),
		responses: make(map[string]response.Response, len(t.responses)),
		subjects:  make(map[string]subject.Context, len(t.subjects)),
	}
	for k, v := range t.templates {
		c.templates[k] = v
	}
	for k, v := range t.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range t.grants {
		c.grants[k] = v
	}
	for k, v := range t.responses {
		c.responses[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	return c
}

func (db *DB) inTx(ctx context.Context) bool {
	txDB, ok := ctx.Value(txKey{}).(*DB)
	return ok && txDB == db
}

// WithinTx runs fn while holding the DB lock and restores the previous state if fn fails.
// Calls nested in fn's context join the running transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	backup := db.t.copy()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.t = backup
		return err
	}
	return nil
}

// run executes fn under the DB lock unless ctx already holds it.
func (db *DB) run(ctx context.Context, fn func(t *tables) error) error {
	if !db.inTx(ctx) {
		db.mutex.Lock()
		defer db.mutex.Unlock()
	}
	return fn(&db.t)
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t = Open().t
}
