package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

var ErrNotFound = errors.New("entity not found")

// Node is one entity record owned by a Store.
// Fields holds the record payload; the containment links live in Parent and
// Children so that attaching a child never touches the payload of its parent.
type Node struct {
	ID       string
	Handle   uint32         // arena slot, stable for the lifetime of the store
	Fields   map[string]any // payload (owned by the store, never shared with callers)
	Parent   string         // parent ID once attached, "" for roots and detached nodes
	Children []string       // child IDs in attach order
}

// Store is an arena of entity nodes addressed by string ID, with integer
// handles for set bookkeeping. Roots are declared explicitly.
// A Store is not safe for concurrent use.
type Store struct {
	nodes    map[string]*Node
	byHandle []*Node
	roots    []string

	// Handles of nodes that have been attached under a parent.
	attached *roaring.Bitmap
}

func NewStore() *Store {
	return &Store{
		nodes:    make(map[string]*Node),
		roots:    []string{},
		attached: roaring.New(),
	}
}

// Add registers a detached node and returns it. Adding an ID twice replaces the
// payload but keeps the handle and links.
func (s *Store) Add(id string, fields map[string]any) *Node {
	if n, ok := s.nodes[id]; ok {
		n.Fields = fields
		return n
	}
	n := &Node{
		ID:     id,
		Handle: uint32(len(s.byHandle)),
		Fields: fields,
	}
	s.nodes[id] = n
	s.byHandle = append(s.byHandle, n)
	return n
}

// AddRoot marks an existing node as a top-level root.
func (s *Store) AddRoot(id string) error {
	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	for _, r := range s.roots {
		if r == id {
			return nil
		}
	}
	s.roots = append(s.roots, id)
	return nil
}

// Attach links child under parent. Both must already be in the store.
// A node can only be attached once.
func (s *Store) Attach(childID, parentID string) error {
	child, ok := s.nodes[childID]
	if !ok {
		return ErrNotFound
	}
	parent, ok := s.nodes[parentID]
	if !ok {
		return ErrNotFound
	}
	if s.attached.Contains(child.Handle) {
		return fmt.Errorf("entity %q already attached to %q", childID, child.Parent)
	}
	parent.Children = append(parent.Children, childID)
	child.Parent = parentID
	s.attached.Add(child.Handle)
	return nil
}

// GetNode returns the node for id.
func (s *Store) GetNode(id string) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// ListChildren returns the child IDs of id. The empty ID lists the roots.
func (s *Store) ListChildren(id string) ([]string, error) {
	if id == "" {
		return s.roots, nil
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Children, nil
}

// Reachable returns the handles of every node reachable from the roots.
func (s *Store) Reachable() *roaring.Bitmap {
	seen := roaring.New()
	stack := make([]*Node, 0, len(s.roots))
	for _, id := range s.roots {
		if n, ok := s.nodes[id]; ok {
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !seen.CheckedAdd(n.Handle) {
			continue
		}
		for _, c := range n.Children {
			if child, ok := s.nodes[c]; ok {
				stack = append(stack, child)
			}
		}
	}
	return seen
}

// Unreachable returns the sorted IDs of nodes that cannot be reached from any
// root. With every node either a root or attached, these are exactly the nodes
// on or below a parent cycle.
func (s *Store) Unreachable() []string {
	all := roaring.New()
	all.AddRange(0, uint64(len(s.byHandle)))
	all.AndNot(s.Reachable())

	ids := make([]string, 0, all.GetCardinality())
	it := all.Iterator()
	for it.HasNext() {
		ids = append(ids, s.byHandle[it.Next()].ID)
	}
	sort.Strings(ids)
	return ids
}

// Cycle follows parent links upward from id and returns the IDs forming the
// loop it ends in, starting at the first repeated node. It returns nil when
// the chain ends at a node without a parent.
func (s *Store) Cycle(id string) []string {
	seen := roaring.New()
	var chain []string
	n, ok := s.nodes[id]
	for ok {
		if !seen.CheckedAdd(n.Handle) {
			for i, c := range chain {
				if c == n.ID {
					return chain[i:]
				}
			}
			return nil
		}
		chain = append(chain, n.ID)
		if n.Parent == "" {
			return nil
		}
		n, ok = s.nodes[n.Parent]
	}
	return nil
}
