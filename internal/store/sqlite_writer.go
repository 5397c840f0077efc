// Package store indexes extracted scenes into SQLite so they can be queried
// with plain SQL.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/binarysemaphore/ylex/internal/scene"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	depth INTEGER NOT NULL,
	kind TEXT,
	record JSON
);
`

var recordOpts = func() ojg.Options {
	opts := ojg.DefaultOptions
	opts.Sort = true
	return opts
}()

// Entity is one row of the index.
type Entity struct {
	ID       string
	ParentID string // "" for roots
	Depth    int
	Kind     string // the record's "type" field, when it has one
	Record   map[string]any
}

// SQLiteWriter bulk-inserts entities inside batched transactions.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
}

// NewSQLiteWriter opens dbPath and creates the entities table.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk load; the index is rebuilt from the log if it is ever lost.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{db: db, batchSize: 5000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO entities (id, parent_id, depth, kind, record)
		VALUES (?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
	}
	return w.tx.Commit()
}

// AddEntity writes one entity.
func (w *SQLiteWriter) AddEntity(e Entity) error {
	var parentID *string
	if e.ParentID != "" {
		parentID = &e.ParentID
	}
	var kind *string
	if e.Kind != "" {
		kind = &e.Kind
	}
	if _, err := w.stmt.Exec(e.ID, parentID, e.Depth, kind, oj.JSON(e.Record, &recordOpts)); err != nil {
		return fmt.Errorf("insert %s: %w", e.ID, err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		w.count = 0
	}
	return nil
}

// WriteTree indexes a nested scene, one row per entity at any depth. The
// stored record omits the "children" field; containment lives in parent_id.
// Top-level values that are not objects are skipped. It returns the number of
// rows written.
func (w *SQLiteWriter) WriteTree(tree map[string]any) (int, error) {
	return w.writeLevel(tree, "", 0)
}

func (w *SQLiteWriter) writeLevel(level map[string]any, parentID string, depth int) (int, error) {
	keys := make([]string, 0, len(level))
	for k := range level {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := 0
	for _, id := range keys {
		rec, ok := level[id].(map[string]any)
		if !ok {
			continue
		}
		children, _ := rec[scene.ChildrenField].(map[string]any)
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			if k == scene.ChildrenField && children != nil {
				continue
			}
			row[k] = v
		}
		kind, _ := rec["type"].(string)
		if err := w.AddEntity(Entity{ID: id, ParentID: parentID, Depth: depth, Kind: kind, Record: row}); err != nil {
			return n, err
		}
		n++
		if children != nil {
			c, err := w.writeLevel(children, id, depth+1)
			n += c
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close commits pending rows, builds the lookup index and closes the database.
func (w *SQLiteWriter) Close() error {
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_parent ON entities(parent_id)`); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("create index: %w", err)
	}
	return w.db.Close()
}

// IndexScene replaces the database at dbPath with a fresh index of tree.
func IndexScene(dbPath string, tree map[string]any) (int, error) {
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove stale index: %w", err)
	}
	w, err := NewSQLiteWriter(dbPath)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteTree(tree)
	if err != nil {
		_ = w.Close()
		return n, err
	}
	return n, w.Close()
}
