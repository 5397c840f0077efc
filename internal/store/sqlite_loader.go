package store

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/binarysemaphore/ylex/internal/scene"
)

// StreamEntities calls fn for every indexed entity, parents before children.
// Only one decoded record is alive at a time.
func StreamEntities(dbPath string, fn func(e Entity) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query(`SELECT id, parent_id, depth, kind, record FROM entities ORDER BY depth, id`)
	if err != nil {
		return fmt.Errorf("query entities: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			e        Entity
			parentID sql.NullString
			kind     sql.NullString
			raw      string
		)
		if err := rows.Scan(&e.ID, &parentID, &e.Depth, &kind, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		e.ParentID = parentID.String
		e.Kind = kind.String
		parsed, err := oj.ParseString(raw)
		if err != nil {
			return fmt.Errorf("parse record %s: %w", e.ID, err)
		}
		if m, ok := parsed.(map[string]any); ok {
			e.Record = m
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadFlat reads the index back as a flat scene: one top-level entry per
// entity, with the "parent" field restored on every non-root.
func LoadFlat(dbPath string) (map[string]any, error) {
	flat := map[string]any{}
	err := StreamEntities(dbPath, func(e Entity) error {
		rec := e.Record
		if rec == nil {
			rec = map[string]any{}
		}
		if e.ParentID != "" {
			rec[scene.ParentField] = e.ParentID
		}
		flat[e.ID] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flat, nil
}
