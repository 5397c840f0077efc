// Package output writes extracted payloads to disk.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/binarysemaphore/ylex/internal/prompt"
)

const (
	DefaultFile = "out.json"
	ErrorFile   = "error.txt"
)

// ErrAborted is returned when the user declines to overwrite an existing
// file and gives no other name.
var ErrAborted = errors.New("write aborted")

// Encode renders data as JSON with keys sorted. Pretty output is indented by
// four spaces.
func Encode(data any, pretty bool) []byte {
	opts := ojg.DefaultOptions
	opts.Sort = true
	if pretty {
		opts.Indent = 4
	}
	return []byte(oj.JSON(data, &opts))
}

// Decode parses a JSON document. The syntax is checked strictly first: the ojg
// parser accepts a missing value such as {"a":} and drops the rest of the
// enclosing object.
func Decode(raw []byte) (any, error) {
	var check json.RawMessage
	if err := json.Unmarshal(raw, &check); err != nil {
		return nil, err
	}
	return oj.Parse(raw)
}

// Writer saves encoded payloads, asking before it replaces an existing file.
type Writer struct {
	FS       billy.Filesystem
	Pretty   bool
	Force    bool             // overwrite without asking
	Prompter *prompt.Prompter // nil means existing files are an error unless Force is set
}

// Write encodes data and stores it at path, or at the replacement name the
// user chose. It returns the path actually written.
func (w *Writer) Write(path string, data any) (string, error) {
	path, err := w.target(path)
	if err != nil {
		return "", err
	}
	if err := util.WriteFile(w.FS, path, Encode(data, w.Pretty), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// target resolves the output name: while the file exists the user either
// confirms the overwrite or supplies a new name.
func (w *Writer) target(path string) (string, error) {
	if w.Force {
		return path, nil
	}
	for {
		_, err := w.FS.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if w.Prompter == nil {
			return "", fmt.Errorf("output file %s already exists", path)
		}
		overwrite, err := w.Prompter.Confirm("Output file already exists, overwrite?")
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAborted, err)
		}
		if overwrite {
			return path, nil
		}
		path, err = w.Prompter.Ask("Rename output file (leave empty to quit): ")
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAborted, err)
		}
		if path == "" {
			return "", ErrAborted
		}
	}
}

// DumpRaw saves text that could not be decoded so it can be inspected.
func DumpRaw(fsys billy.Filesystem, path, raw string) error {
	if err := util.WriteFile(fsys, path, []byte(raw), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
