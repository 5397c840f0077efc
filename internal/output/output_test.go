package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binarysemaphore/ylex/internal/prompt"
)

var sample = map[string]any{
	"b": map[string]any{"type": "block"},
	"a": map[string]any{"children": map[string]any{"c": map[string]any{}}},
}

func TestEncode_CompactSorted(t *testing.T) {
	got := string(Encode(sample, false))
	assert.Equal(t, `{"a":{"children":{"c":{}}},"b":{"type":"block"}}`, got)
}

func TestEncode_PrettyRoundTrips(t *testing.T) {
	got := Encode(sample, true)
	assert.Contains(t, string(got), "\n    \"a\"")

	back, err := oj.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, sample, back)
}

func TestDecode(t *testing.T) {
	v, err := Decode([]byte(`{"a": {"n": 3, "f": 1.5}, "b": [true, null]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"n": int64(3), "f": 1.5},
		"b": []any{true, nil},
	}, v)
}

func TestDecode_RejectsMissingValue(t *testing.T) {
	tests := []string{
		`{"broken":}`,
		`{"a": {"b":}}`,
		`{"a": 1,}`,
		`{"a": 1`,
		``,
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			v, err := Decode([]byte(raw))
			assert.Error(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestWrite_NewFile(t *testing.T) {
	fs := memfs.New()
	w := &Writer{FS: fs}

	path, err := w.Write("out.json", sample)
	require.NoError(t, err)
	assert.Equal(t, "out.json", path)

	raw, err := util.ReadFile(fs, "out.json")
	require.NoError(t, err)
	assert.Equal(t, Encode(sample, false), raw)
}

func TestWrite_ExistingWithoutPrompter(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.json", []byte("old"), 0o644))

	_, err := (&Writer{FS: fs}).Write("out.json", sample)
	assert.ErrorContains(t, err, "already exists")
}

func TestWrite_Force(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.json", []byte("old"), 0o644))

	_, err := (&Writer{FS: fs, Force: true}).Write("out.json", sample)
	require.NoError(t, err)
	raw, _ := util.ReadFile(fs, "out.json")
	assert.NotEqual(t, "old", string(raw))
}

func TestWrite_ConfirmOverwrite(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.json", []byte("old"), 0o644))
	var out bytes.Buffer
	w := &Writer{FS: fs, Prompter: prompt.New(strings.NewReader("y\n"), &out)}

	path, err := w.Write("out.json", sample)
	require.NoError(t, err)
	assert.Equal(t, "out.json", path)
	assert.Contains(t, out.String(), "overwrite? (y/n)")
}

func TestWrite_RenameUntilFree(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.json", []byte("old"), 0o644))
	require.NoError(t, util.WriteFile(fs, "taken.json", []byte("old"), 0o644))

	answers := "n\ntaken.json\nn\nfresh.json\n"
	w := &Writer{FS: fs, Prompter: prompt.New(strings.NewReader(answers), &bytes.Buffer{})}

	path, err := w.Write("out.json", sample)
	require.NoError(t, err)
	assert.Equal(t, "fresh.json", path)

	raw, _ := util.ReadFile(fs, "out.json")
	assert.Equal(t, "old", string(raw))
}

func TestWrite_EmptyNameAborts(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.json", []byte("old"), 0o644))
	w := &Writer{FS: fs, Prompter: prompt.New(strings.NewReader("n\n\n"), &bytes.Buffer{})}

	_, err := w.Write("out.json", sample)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestDumpRaw(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, DumpRaw(fs, ErrorFile, `{"broken":`))

	raw, err := util.ReadFile(fs, ErrorFile)
	require.NoError(t, err)
	assert.Equal(t, `{"broken":`, string(raw))
}
