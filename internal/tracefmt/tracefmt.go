// Package tracefmt decodes the line-oriented trace format the replay
// harness consumes: one operation per line, `#`-prefixed comments, and an
// optional `# format <semver>` header declaring which revision of the
// format a trace file was written against.
package tracefmt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CurrentVersion is the format version this decoder emits and expects.
// Bumped whenever a field is added or an operation's meaning changes.
var CurrentVersion = semver.MustParse("1.0.0")

// SupportedFormat constrains which `# format` headers this build will
// accept. Widened only in lockstep with a backward-compatible change to
// the line format; a major bump here means old trace files need
// rewriting, not just a version string update.
var SupportedFormat = mustConstraint("^1.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Op identifies which of the two trace operations a Line carries.
type Op int

const (
	// OpAllocate is `a <id> <size>`: allocate size bytes, remember the
	// result under id for a later OpFree to reference.
	OpAllocate Op = iota
	// OpFree is `f <id>`: free whatever OpAllocate bound to id.
	OpFree
)

// Line is one decoded trace operation, tagged with its 1-based source
// line number for error reporting.
type Line struct {
	Op       Op
	ID       string
	Size     uintptr
	SourceNo int
}

// Decoder reads Lines from a trace file, skipping blank lines and
// comments. A comment of the exact form `# format X.Y.Z` sets Version;
// any other comment is ignored.
type Decoder struct {
	scanner *bufio.Scanner
	lineNo  int
	Version *semver.Version
}

// NewDecoder wraps r. Version starts at CurrentVersion and is only
// overwritten if the trace carries an explicit `# format` header.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		scanner: bufio.NewScanner(r),
		Version: CurrentVersion,
	}
}

// Next decodes the next operation, returning io.EOF once the input is
// exhausted.
func (d *Decoder) Next() (Line, error) {
	for d.scanner.Scan() {
		d.lineNo++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if v, ok := parseFormatHeader(text); ok {
				if !SupportedFormat.Check(v) {
					return Line{}, fmt.Errorf("tracefmt: line %d: format %s is not supported by this build (want %s)",
						d.lineNo, v, SupportedFormat)
				}
				d.Version = v
			}
			continue
		}

		line, err := parseLine(text, d.lineNo)
		if err != nil {
			return Line{}, err
		}
		return line, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Line{}, fmt.Errorf("tracefmt: read: %w", err)
	}
	return Line{}, io.EOF
}

// All decodes every remaining operation into a slice. Intended for small
// traces and tests; the replay harness uses Next directly and applies
// each operation as soon as it is decoded.
func (d *Decoder) All() ([]Line, error) {
	var out []Line
	for {
		line, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
}

func parseFormatHeader(comment string) (*semver.Version, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(comment, "#"))
	fields := strings.Fields(body)
	if len(fields) != 2 || fields[0] != "format" {
		return nil, false
	}
	v, err := semver.NewVersion(fields[1])
	if err != nil {
		return nil, false
	}
	return v, true
}

func parseLine(text string, lineNo int) (Line, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Line{}, fmt.Errorf("tracefmt: line %d: empty after trim", lineNo)
	}

	switch fields[0] {
	case "a":
		if len(fields) != 3 {
			return Line{}, fmt.Errorf("tracefmt: line %d: want `a <id> <size>`, got %q", lineNo, text)
		}
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("tracefmt: line %d: bad size %q: %w", lineNo, fields[2], err)
		}
		return Line{Op: OpAllocate, ID: fields[1], Size: uintptr(size), SourceNo: lineNo}, nil

	case "f":
		if len(fields) != 2 {
			return Line{}, fmt.Errorf("tracefmt: line %d: want `f <id>`, got %q", lineNo, text)
		}
		return Line{Op: OpFree, ID: fields[1], SourceNo: lineNo}, nil

	default:
		return Line{}, fmt.Errorf("tracefmt: line %d: unknown operation %q", lineNo, fields[0])
	}
}

// Encoder writes the same format Decoder reads. Used by tests to
// synthesize trace fixtures without hand-writing line-oriented text.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w and immediately writes the format header.
func NewEncoder(w io.Writer) (*Encoder, error) {
	if _, err := fmt.Fprintf(w, "# format %s\n", CurrentVersion); err != nil {
		return nil, fmt.Errorf("tracefmt: write header: %w", err)
	}
	return &Encoder{w: w}, nil
}

// Allocate writes an `a` line.
func (e *Encoder) Allocate(id string, size uintptr) error {
	_, err := fmt.Fprintf(e.w, "a %s %d\n", id, size)
	return err
}

// Free writes an `f` line.
func (e *Encoder) Free(id string) error {
	_, err := fmt.Fprintf(e.w, "f %s\n", id)
	return err
}
