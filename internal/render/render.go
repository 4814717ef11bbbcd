package render

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/srs-generator/internal/storage"
)

// TimestampLayout gives filenames one-second resolution. Two renders of the
// same kind for one owner inside the same second target the same file.
const TimestampLayout = "20060102_150405"

var (
	ErrEmptyOwner = errors.New("owner is required")

	headingPattern = regexp.MustCompile(`^\d+\.`)
)

// Output identifies a stored document.
type Output struct {
	// Name is the bare filename, e.g. "alice_20240501_101500.pdf".
	Name string
	// RelPath is "<owner>/<kind>/<name>".
	RelPath string
}

// Renderer turns a titled body of text into one stored document.
type Renderer interface {
	Kind() storage.Kind
	Render(ctx context.Context, title, body, owner string) (Output, error)
}

type BlockKind int

const (
	BlockSpacer BlockKind = iota
	BlockHeading
	BlockParagraph
)

func (k BlockKind) String() string {
	switch k {
	case BlockSpacer:
		return "spacer"
	case BlockHeading:
		return "heading"
	case BlockParagraph:
		return "paragraph"
	}
	return "unknown"
}

type Block struct {
	Kind BlockKind
	Text string
}

// Classify splits body into lines and tags each one. Lines are trimmed; a
// blank line is a spacer, a line starting with "<digits>." is a heading and
// everything else is a justified paragraph.
func Classify(body string) []Block {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			blocks = append(blocks, Block{Kind: BlockSpacer})
		case headingPattern.MatchString(line):
			blocks = append(blocks, Block{Kind: BlockHeading, Text: line})
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: line})
		}
	}
	return blocks
}

type options struct {
	now      func() time.Time
	compress bool
}

type Option func(*options)

// WithClock replaces time.Now for filename timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCompression toggles stream compression of PDF output. It has no effect
// on Word documents.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, compress: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// target reserves the output location for one render.
type target struct {
	path string
	out  Output
}

func resolveTarget(layout *storage.Layout, kind storage.Kind, ext, owner string, now time.Time) (target, error) {
	safeOwner := storage.Sanitize(strings.TrimSpace(owner))
	if safeOwner == "" {
		return target{}, ErrEmptyOwner
	}
	dir, err := layout.Dir(safeOwner, kind)
	if err != nil {
		return target{}, err
	}
	name := FileName(safeOwner, now, ext)
	return target{
		path: filepath.Join(dir, name),
		out: Output{
			Name:    name,
			RelPath: storage.RelativePath(safeOwner, kind, name),
		},
	}, nil
}

// FileName builds "<owner>_<YYYYmmdd_HHMMSS>.<ext>".
func FileName(owner string, at time.Time, ext string) string {
	return storage.Sanitize(owner) + "_" + at.Format(TimestampLayout) + "." + ext
}
