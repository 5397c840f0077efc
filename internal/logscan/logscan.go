// Package logscan pulls exported JSON payloads out of the Ylands userscript log.
//
// The EXPORTSCENE and EXPORTBLOCKDEFS tools print a header line followed by the
// payload, one "# "-prefixed log line per JSON line, ending with a "# }" line.
// Only the most recent export in the log is returned.
package logscan

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/binarysemaphore/ylex/internal/output"
)

// Kind names the tool that produced an export.
type Kind string

const (
	KindBlockDef Kind = "BLOCKDEF"
	KindScene    Kind = "SCENE"
)

const (
	endMarker      = "# }"
	stripChars     = "# "
	blockDefHeader = "Export Block Ref (below):"
	sceneHeader    = "Export Scene (below):"

	maxLineSize = 256 << 20
)

var (
	ErrNoData   = errors.New("no data in log file")
	ErrNoExport = errors.New("could not find any export data")
)

// Export is one payload located in the log.
type Export struct {
	Kind Kind
	// First and last payload lines, 1-based, inclusive.
	StartLine int
	EndLine   int
	// Raw is the scrubbed and ASCII-repaired payload text.
	Raw string
}

// DecodeError is returned when an export's payload is not valid JSON.
// Raw holds the text that failed to parse so it can be saved for inspection.
type DecodeError struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadLines reads path from fsys and splits it into lines without their
// terminators.
func ReadLines(fsys billy.Filesystem, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return lines, nil
}

// Find locates the most recent export in lines.
//
// Walking up from the end of the log, every "# }" line is a candidate payload
// end until a header line is reached; the candidate nearest to the header
// wins. The payload is everything between the header and that end line.
func Find(lines []string) (*Export, error) {
	if len(lines) == 0 {
		return nil, ErrNoData
	}

	end := -1
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.HasPrefix(line, endMarker) {
			end = i
		}
		if end < 0 {
			continue
		}
		kind, ok := headerKind(line)
		if !ok {
			continue
		}
		if i == end {
			return nil, ErrNoExport
		}
		return &Export{
			Kind:      kind,
			StartLine: i + 2,
			EndLine:   end + 1,
			Raw:       Join(lines[i+1 : end+1]),
		}, nil
	}
	return nil, ErrNoExport
}

func headerKind(line string) (Kind, bool) {
	switch {
	case strings.Contains(line, blockDefHeader):
		return KindBlockDef, true
	case strings.Contains(line, sceneHeader):
		return KindScene, true
	}
	return "", false
}

// Join scrubs the log decoration from each payload line and joins them into
// a single ASCII document. Line breaks are kept so decode errors point at the
// original log line.
func Join(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Trim(line, stripChars))
	}
	return Repair(b.String())
}

// Repair replaces every non-ASCII byte with '?'. The userscript log mixes
// encodings, so multi-byte sequences are not decoded.
func Repair(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	buf := []byte(s)
	for i, c := range buf {
		if c > 0x7f {
			buf[i] = '?'
		}
	}
	return string(buf)
}

// Decode parses the payload.
func (e *Export) Decode() (any, error) {
	v, err := output.Decode([]byte(e.Raw))
	if err != nil {
		return nil, &DecodeError{Kind: e.Kind, Raw: e.Raw, Err: err}
	}
	return v, nil
}

// Extract reads the log at path and returns its most recent export, decoded.
func Extract(fsys billy.Filesystem, path string) (*Export, any, error) {
	lines, err := ReadLines(fsys, path)
	if err != nil {
		return nil, nil, err
	}
	exp, err := Find(lines)
	if err != nil {
		return nil, nil, err
	}
	data, err := exp.Decode()
	if err != nil {
		return exp, nil, err
	}
	return exp, data, nil
}
