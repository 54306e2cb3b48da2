// Package sysfs is the metric-source boundary: every hardware value batfi
// consumes is read through a Source, and every read is optional.
package sysfs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrUnavailable means the attribute is missing or unreadable.
	ErrUnavailable = errors.New("attribute unavailable")
	// ErrMalformed means the attribute exists but does not parse.
	ErrMalformed = errors.New("malformed attribute value")
)

// DefaultRoot is where the kernel mounts sysfs.
const DefaultRoot = "/sys"

// Source reads attributes below a sysfs root. Names are slash separated
// and relative to the root, e.g. "class/power_supply/BAT0/status".
type Source struct {
	fsys fs.FS
	root string
}

// New returns a Source over the host directory root.
func New(root string) *Source {
	if root == "" {
		root = DefaultRoot
	}
	return &Source{fsys: os.DirFS(root), root: root}
}

// NewFS returns a Source over an arbitrary file system, e.g. fstest.MapFS.
func NewFS(fsys fs.FS) *Source {
	return &Source{fsys: fsys}
}

// Root returns the host directory, or "" for synthetic trees.
func (s *Source) Root() string { return s.root }

// Path returns the host path of name for display.
func (s *Source) Path(name string) string {
	if s.root == "" {
		return name
	}
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// ReadString returns the first line of name with surrounding space trimmed.
func (s *Source) ReadString(name string) (string, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	defer f.Close()

	v, err := readValueFrom(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	return v, nil
}

// ReadInt parses name as a base-10 integer.
func (s *Source) ReadInt(name string) (int64, error) {
	v, err := s.ReadString(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", name, v, ErrMalformed)
	}
	return n, nil
}

// ReadFloat parses name as a float.
func (s *Source) ReadFloat(name string) (float64, error) {
	v, err := s.ReadString(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", name, v, ErrMalformed)
	}
	return f, nil
}

// Exists reports whether name is present.
func (s *Source) Exists(name string) bool {
	_, err := fs.Stat(s.fsys, name)
	return err == nil
}

// Glob returns the names matching pattern, in lexical order.
func (s *Source) Glob(pattern string) ([]string, error) {
	return fs.Glob(s.fsys, pattern)
}

// Join is path.Join for source names.
func Join(elem ...string) string {
	return path.Join(elem...)
}

// readValueFrom returns the first line of r, trimmed.
func readValueFrom(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", nil
}
