package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the output category of a rendered document. It names the
// sub-directory inside an owner's namespace.
type Kind string

const (
	KindPDF  Kind = "pdfs"
	KindWord Kind = "docs"
)

var (
	ErrInvalidName = errors.New("invalid name")
	ErrNotFound    = errors.New("file not found")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Layout maps owners to directories under a single root.
//
//	<root>/<owner>/pdfs/<file>
//	<root>/<owner>/docs/<file>
type Layout struct {
	root string
}

func NewLayout(root string) (*Layout, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Layout{root: abs}, nil
}

func (l *Layout) Root() string {
	return l.root
}

// Sanitize keeps only the final path element of name and replaces every
// character outside [A-Za-z0-9._-] with '_'. Names that reduce to "", "." or
// ".." yield "".
func Sanitize(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// Dir returns the directory for one owner and kind, creating it if absent.
func (l *Layout) Dir(owner string, kind Kind) (string, error) {
	safe := Sanitize(owner)
	if safe == "" {
		return "", fmt.Errorf("owner %q: %w", owner, ErrInvalidName)
	}
	dir := filepath.Join(l.root, safe, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s directory: %w", kind, err)
	}
	return dir, nil
}

// DirectoriesFor returns the PDF and Word directories of owner, creating both.
func (l *Layout) DirectoriesFor(owner string) (pdfDir string, docDir string, err error) {
	if pdfDir, err = l.Dir(owner, KindPDF); err != nil {
		return "", "", err
	}
	if docDir, err = l.Dir(owner, KindWord); err != nil {
		return "", "", err
	}
	return pdfDir, docDir, nil
}

// RelativePath is the owner-relative reference handed back to clients.
func RelativePath(owner string, kind Kind, filename string) string {
	return Sanitize(owner) + "/" + string(kind) + "/" + filename
}

// Resolve returns the absolute path of an existing file inside the owner's
// namespace. Both segments are sanitised first, so the result can never leave
// <root>/<owner>/<kind>.
func (l *Layout) Resolve(owner string, kind Kind, filename string) (string, error) {
	safeOwner := Sanitize(owner)
	safeName := Sanitize(filename)
	if safeOwner == "" || safeName == "" {
		return "", ErrNotFound
	}

	base := filepath.Join(l.root, safeOwner, string(kind))
	full := filepath.Join(base, safeName)
	if rel, err := filepath.Rel(base, full); err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrNotFound
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", safeName, err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return full, nil
}
