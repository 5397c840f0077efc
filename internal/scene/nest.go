// Package scene reshapes flat Ylands scene exports into nested containment trees.
//
// An exported scene is a JSON object keyed by entity ID. Entities that belong
// to a group point at it through their "parent" field. Nest moves every such
// entity under its parent's "children" object and drops the consumed "parent"
// field, leaving only root entities at the top level.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/binarysemaphore/ylex/internal/graph"
)

const (
	ParentField   = "parent"
	ChildrenField = "children"
)

// ErrNotObject is returned when the payload or one of its entities is not a
// JSON object.
var ErrNotObject = errors.New("not a JSON object")

// MissingParentError reports a parent reference that does not resolve to an
// entity object in the source collection.
type MissingParentError struct {
	ChildKey  string
	ParentKey string
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("cannot find parent %q of %q in source data", e.ParentKey, e.ChildKey)
}

// CyclicParentError reports entities whose parent chain loops back on itself.
// Keys lists the loop in parent order, starting at its smallest key.
type CyclicParentError struct {
	Keys []string
}

func (e *CyclicParentError) Error() string {
	if len(e.Keys) == 0 {
		return "cyclic parent chain"
	}
	return fmt.Sprintf("cyclic parent chain: %s -> %s", strings.Join(e.Keys, " -> "), e.Keys[0])
}

// NestValue is Nest for an undecoded payload of unknown shape.
func NestValue(v any) (map[string]any, error) {
	flat, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("scene payload is %T: %w", v, ErrNotObject)
	}
	return Nest(flat)
}

// Nest converts a flat entity collection into a nested one. The input map and
// its records are left untouched; the result shares no maps with it apart from
// opaque payload values.
//
// An entity whose "parent" field is absent or falsy stays at the top level
// unchanged. Every other entity is moved into its parent's "children" object
// with "parent" removed.
func Nest(flat map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	store := graph.NewStore()
	for _, k := range keys {
		if rec, ok := flat[k].(map[string]any); ok {
			store.Add(k, copyFields(rec))
		}
	}

	for _, k := range keys {
		rec, ok := flat[k].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entity %q is %T: %w", k, flat[k], ErrNotObject)
		}
		ref := rec[ParentField]
		if !Truthy(ref) {
			if err := store.AddRoot(k); err != nil {
				return nil, err
			}
			continue
		}
		parentKey, ok := ref.(string)
		if !ok {
			return nil, &MissingParentError{ChildKey: k, ParentKey: fmt.Sprint(ref)}
		}
		if err := store.Attach(k, parentKey); err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				return nil, &MissingParentError{ChildKey: k, ParentKey: parentKey}
			}
			return nil, err
		}
		child, _ := store.GetNode(k)
		delete(child.Fields, ParentField)
	}

	if lost := store.Unreachable(); len(lost) > 0 {
		return nil, &CyclicParentError{Keys: rotate(store.Cycle(lost[0]))}
	}

	roots, err := store.ListChildren("")
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(roots))
	for _, id := range roots {
		rec, err := materialize(store, id)
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

// materialize builds the output record for id and its subtree. The store is
// known to be acyclic here, so every node is visited exactly once.
func materialize(store *graph.Store, id string) (map[string]any, error) {
	n, err := store.GetNode(id)
	if err != nil {
		return nil, err
	}
	kids, err := store.ListChildren(id)
	if err != nil {
		return nil, err
	}
	if len(kids) == 0 {
		return n.Fields, nil
	}

	children := map[string]any{}
	if existing := n.Fields[ChildrenField]; Truthy(existing) {
		m, ok := existing.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entity %q children field is %T: %w", id, existing, ErrNotObject)
		}
		for k, v := range m {
			children[k] = v
		}
	}
	for _, c := range kids {
		rec, err := materialize(store, c)
		if err != nil {
			return nil, err
		}
		children[c] = rec
	}
	n.Fields[ChildrenField] = children
	return n.Fields, nil
}

func copyFields(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// rotate returns keys starting at its smallest element, keeping cycle order.
func rotate(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	first := 0
	for i, k := range keys {
		if k < keys[first] {
			first = i
		}
	}
	return append(append([]string{}, keys[first:]...), keys[:first]...)
}
