package scene

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, src string) map[string]any {
	t.Helper()
	v, err := oj.ParseString(src)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok, "fixture must be an object")
	return m
}

// countEntities counts every entity reachable from the top level, descending
// through children objects.
func countEntities(m map[string]any) int {
	n := 0
	for _, v := range m {
		n++
		rec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if children, ok := rec[ChildrenField].(map[string]any); ok {
			n += countEntities(children)
		}
	}
	return n
}

func assertNoParent(t *testing.T, m map[string]any) {
	t.Helper()
	for k, v := range m {
		rec := v.(map[string]any)
		assert.NotContains(t, rec, ParentField, "relocated entity %q kept its parent field", k)
		if children, ok := rec[ChildrenField].(map[string]any); ok {
			assertNoParent(t, children)
		}
	}
}

func TestNest_MultiLevel(t *testing.T) {
	flat := decode(t, `{"a": {}, "b": {"parent": "a"}, "c": {"parent": "b"}}`)

	got, err := Nest(flat)
	require.NoError(t, err)

	want := decode(t, `{"a": {"children": {"b": {"children": {"c": {}}}}}}`)
	assert.Equal(t, want, got)
}

func TestNest_SiblingGrouping(t *testing.T) {
	for _, src := range []string{
		`{"a": {}, "b": {"parent": "a"}, "c": {"parent": "a"}}`,
		`{"c": {"parent": "a"}, "b": {"parent": "a"}, "a": {}}`,
		`{"b": {"parent": "a"}, "a": {}, "c": {"parent": "a"}}`,
	} {
		t.Run(src, func(t *testing.T) {
			got, err := Nest(decode(t, src))
			require.NoError(t, err)
			assert.Equal(t, decode(t, `{"a": {"children": {"b": {}, "c": {}}}}`), got)
		})
	}
}

func TestNest_ChildBeforeParentInKeyOrder(t *testing.T) {
	// "a" sorts before its parent "z" and grandparent "zz".
	flat := decode(t, `{"zz": {"n": 1}, "z": {"parent": "zz", "n": 2}, "a": {"parent": "z", "n": 3}}`)

	got, err := Nest(flat)
	require.NoError(t, err)

	want := decode(t, `{"zz": {"n": 1, "children": {"z": {"n": 2, "children": {"a": {"n": 3}}}}}}`)
	assert.Equal(t, want, got)
}

func TestNest_MissingParent(t *testing.T) {
	got, err := Nest(decode(t, `{"a": {"parent": "ghost"}}`))
	require.Error(t, err)
	assert.Nil(t, got)

	var mpe *MissingParentError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, "a", mpe.ChildKey)
	assert.Equal(t, "ghost", mpe.ParentKey)
	assert.Contains(t, err.Error(), `"ghost"`)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestNest_ParentIsNotAnObject(t *testing.T) {
	for _, src := range []string{
		`{"a": {"parent": "b"}, "b": 5}`,
		`{"a": {"parent": "b"}, "b": [1, 2]}`,
		`{"a": {"parent": "b"}, "b": "text"}`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Nest(decode(t, src))
			var mpe *MissingParentError
			require.True(t, errors.As(err, &mpe), "got %v", err)
			assert.Equal(t, "b", mpe.ParentKey)
		})
	}
}

func TestNest_NonStringParent(t *testing.T) {
	_, err := Nest(decode(t, `{"a": {"parent": 7}, "7": {}}`))
	var mpe *MissingParentError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, "7", mpe.ParentKey)
}

func TestNest_FalsyParentIsRoot(t *testing.T) {
	flat := decode(t, `{
		"absent": {"x": 1},
		"empty": {"parent": ""},
		"null": {"parent": null},
		"zero": {"parent": 0},
		"fzero": {"parent": 0.0},
		"false": {"parent": false},
		"obj": {"parent": {}},
		"arr": {"parent": []}
	}`)

	got, err := Nest(flat)
	require.NoError(t, err)
	assert.Len(t, got, len(flat))
	// Roots pass through unchanged, falsy parent included.
	assert.Equal(t, flat, got)
}

func TestNest_SelfParent(t *testing.T) {
	_, err := Nest(decode(t, `{"a": {}, "loop": {"parent": "loop"}}`))

	var cpe *CyclicParentError
	require.True(t, errors.As(err, &cpe), "got %v", err)
	assert.Equal(t, []string{"loop"}, cpe.Keys)
	assert.Equal(t, "cyclic parent chain: loop -> loop", err.Error())
}

func TestNest_MutualCycle(t *testing.T) {
	_, err := Nest(decode(t, `{
		"root": {},
		"x": {"parent": "y"},
		"y": {"parent": "z"},
		"z": {"parent": "x"},
		"hangs": {"parent": "x"}
	}`))

	var cpe *CyclicParentError
	require.True(t, errors.As(err, &cpe), "got %v", err)
	assert.Equal(t, []string{"x", "y", "z"}, cpe.Keys)
}

func TestNest_DoesNotMutateInput(t *testing.T) {
	flat := decode(t, `{"a": {"name": "house"}, "b": {"parent": "a"}}`)
	before := decode(t, `{"a": {"name": "house"}, "b": {"parent": "a"}}`)

	_, err := Nest(flat)
	require.NoError(t, err)
	assert.Equal(t, before, flat)
}

func TestNest_KeepsExistingChildren(t *testing.T) {
	flat := decode(t, `{"a": {"children": {"pre": {"k": 1}}}, "b": {"parent": "a"}}`)

	got, err := Nest(flat)
	require.NoError(t, err)
	assert.Equal(t, decode(t, `{"a": {"children": {"pre": {"k": 1}, "b": {}}}}`), got)
}

func TestNest_ExistingChildrenNotAnObject(t *testing.T) {
	_, err := Nest(decode(t, `{"a": {"children": [1]}, "b": {"parent": "a"}}`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestNest_EntityNotAnObject(t *testing.T) {
	_, err := Nest(decode(t, `{"a": {}, "b": 3}`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestNestValue_RejectsNonObject(t *testing.T) {
	_, err := NestValue([]any{1, 2})
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestNest_PayloadPassesThrough(t *testing.T) {
	flat := decode(t, `{
		"grp": {"type": "group", "position": [1.5, 2, -3], "meta": {"name": "Hut"}},
		"blk": {"parent": "grp", "type": "block", "rotation": [0, 90, 0], "color": null}
	}`)

	got, err := Nest(flat)
	require.NoError(t, err)

	grp := got["grp"].(map[string]any)
	assert.Equal(t, "group", grp["type"])
	assert.Equal(t, map[string]any{"name": "Hut"}, grp["meta"])
	blk := grp[ChildrenField].(map[string]any)["blk"].(map[string]any)
	assert.Equal(t, "block", blk["type"])
	assert.Contains(t, blk, "color")
	assert.Nil(t, blk["color"])
}

func TestNest_ConservationAndRoots(t *testing.T) {
	// A wide, deep fixture: 5 roots, each with a 4-deep chain and 3 leaves per level.
	flat := map[string]any{}
	roots := map[string]bool{}
	for r := 0; r < 5; r++ {
		root := fmt.Sprintf("root%d", r)
		flat[root] = map[string]any{"parent": ""}
		roots[root] = true
		parent := root
		for d := 0; d < 4; d++ {
			node := fmt.Sprintf("%s/n%d", root, d)
			flat[node] = map[string]any{"parent": parent, "depth": d}
			for l := 0; l < 3; l++ {
				flat[fmt.Sprintf("%s/leaf%d", node, l)] = map[string]any{"parent": node}
			}
			parent = node
		}
	}

	got, err := Nest(flat)
	require.NoError(t, err)

	assert.Equal(t, len(flat), countEntities(got))
	assert.Len(t, got, len(roots))
	for k := range got {
		assert.True(t, roots[k], "non-root %q at top level", k)
	}
	for _, v := range got {
		children := v.(map[string]any)[ChildrenField].(map[string]any)
		assertNoParent(t, children)
	}
}

func TestNest_Empty(t *testing.T) {
	got, err := Nest(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
