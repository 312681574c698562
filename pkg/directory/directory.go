// Package directory is a filesystem abstraction covering
// create/open/exists/delete/atomic-rename/mkdir-all/list/append/
// atomic-write, with filesystem and in-memory backends built on
// hackpadfs.FS/hackpadfs.ReadFile/hackpadfs.WriteFullFile, generalized
// into a standalone package so segments, the WAL, and HNSW snapshots can
// all share one abstraction instead of each hand-rolling file I/O.
package directory

import (
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/hack-pad/hackpadfs"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

// Directory is the abstract storage backend segments, the WAL, and
// checkpoints are written through.
type Directory interface {
	// CreateFile creates (truncating if it exists) and opens path for
	// writing.
	CreateFile(path string) (io.WriteCloser, error)
	// OpenFile opens path for reading.
	OpenFile(path string) (io.ReadCloser, error)
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Delete removes path.
	Delete(path string) error
	// AtomicRename renames oldPath to newPath with POSIX rename
	// semantics: newPath is replaced atomically if it already exists.
	AtomicRename(oldPath, newPath string) error
	// CreateDirAll creates path and any missing parents.
	CreateDirAll(path string) error
	// ListDir lists the immediate entries of path.
	ListDir(path string) ([]string, error)
	// AppendFile opens path for appending, creating it if missing.
	AppendFile(path string) (io.WriteCloser, error)
	// AtomicWrite writes data to path via a temp file plus rename, the
	// durability hinge for checkpoint publication.
	AtomicWrite(path string, data []byte) error
	// ReadFile reads the entirety of path.
	ReadFile(path string) ([]byte, error)
	// FilePath returns the real filesystem path for path, for backends
	// that support memory-mapping; ok is false for backends (e.g.
	// in-memory) that have none.
	FilePath(path string) (real string, ok bool)
}

// hackpadDir adapts a hackpadfs.FS into a Directory. Both the real
// filesystem backend (hackpadfs/os) and the in-memory test backend
// (hackpadfs/mem) satisfy hackpadfs.FS, so one implementation covers
// both required backends.
type hackpadDir struct {
	fs     hackpadfs.FS
	root   string // real filesystem root, "" for in-memory backends
	prefix string // path prepended before every call into fs, "" if fs is already rooted where we want
}

// NewFS wraps an hackpadfs.FS-backed directory rooted at root (the real
// filesystem path corresponding to fs's origin, used only to answer
// FilePath for memory-mapping; pass "" if the backend has no stable
// on-disk path, e.g. an in-memory FS).
func NewFS(fsys hackpadfs.FS, root string) Directory {
	return &hackpadDir{fs: fsys, root: root}
}

// newPrefixed wraps fsys so every path is joined onto prefix before being
// passed through, letting a single process-wide hackpadfs.FS (e.g. the
// OS backend rooted at "/") serve multiple independently rooted
// Directory instances.
func newPrefixed(fsys hackpadfs.FS, prefix, root string) Directory {
	return &hackpadDir{fs: fsys, root: root, prefix: prefix}
}

func (d *hackpadDir) join(p string) string {
	if d.prefix == "" {
		return p
	}
	if p == "." || p == "" {
		return d.prefix
	}
	return path.Join(d.prefix, p)
}

func (d *hackpadDir) CreateFile(p string) (io.WriteCloser, error) {
	f, err := hackpadfs.OpenFile(d.fs, d.join(p), hackpadfs.FlagReadWrite|hackpadfs.FlagCreate|hackpadfs.FlagTruncate, 0644)
	if err != nil {
		return nil, &errs.Io{Cause: err}
	}
	wc, ok := f.(io.WriteCloser)
	if !ok {
		f.Close()
		return nil, &errs.NotSupported{Msg: "backend file handle does not support writing"}
	}
	return wc, nil
}

func (d *hackpadDir) OpenFile(p string) (io.ReadCloser, error) {
	f, err := d.fs.Open(d.join(p))
	if err != nil {
		if isNotExist(err) {
			return nil, &errs.NotFound{Path: p}
		}
		return nil, &errs.Io{Cause: err}
	}
	rc, ok := f.(io.ReadCloser)
	if !ok {
		f.Close()
		return nil, &errs.NotSupported{Msg: "backend file handle does not support reading"}
	}
	return rc, nil
}

func (d *hackpadDir) Exists(p string) (bool, error) {
	_, err := hackpadfs.Stat(d.fs, d.join(p))
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, &errs.Io{Cause: err}
}

func (d *hackpadDir) Delete(p string) error {
	if err := hackpadfs.Remove(d.fs, d.join(p)); err != nil && !isNotExist(err) {
		return &errs.Io{Cause: err}
	}
	return nil
}

func (d *hackpadDir) AtomicRename(oldPath, newPath string) error {
	renamer, ok := d.fs.(hackpadfs.RenameFS)
	if !ok {
		return &errs.NotSupported{Msg: "backend does not support atomic rename"}
	}
	if err := renamer.Rename(d.join(oldPath), d.join(newPath)); err != nil {
		return &errs.Io{Cause: err}
	}
	return nil
}

func (d *hackpadDir) CreateDirAll(p string) error {
	if err := hackpadfs.MkdirAll(d.fs, d.join(p), 0755); err != nil {
		return &errs.Io{Cause: err}
	}
	return nil
}

func (d *hackpadDir) ListDir(p string) ([]string, error) {
	entries, err := hackpadfs.ReadDir(d.fs, d.join(p))
	if err != nil {
		if isNotExist(err) {
			return nil, &errs.NotFound{Path: p}
		}
		return nil, &errs.Io{Cause: err}
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (d *hackpadDir) AppendFile(p string) (io.WriteCloser, error) {
	f, err := hackpadfs.OpenFile(d.fs, d.join(p), hackpadfs.FlagReadWrite|hackpadfs.FlagCreate|hackpadfs.FlagAppend, 0644)
	if err != nil {
		return nil, &errs.Io{Cause: err}
	}
	wc, ok := f.(io.WriteCloser)
	if !ok {
		f.Close()
		return nil, &errs.NotSupported{Msg: "backend file handle does not support appending"}
	}
	return wc, nil
}

func (d *hackpadDir) AtomicWrite(p string, data []byte) error {
	tmp := p + ".tmp"
	if dir := path.Dir(p); dir != "." {
		if err := d.CreateDirAll(dir); err != nil {
			return err
		}
	}
	if err := hackpadfs.WriteFullFile(d.fs, d.join(tmp), data, 0644); err != nil {
		return &errs.Io{Cause: err}
	}
	return d.AtomicRename(tmp, p)
}

func (d *hackpadDir) ReadFile(p string) ([]byte, error) {
	b, err := hackpadfs.ReadFile(d.fs, d.join(p))
	if err != nil {
		if isNotExist(err) {
			return nil, &errs.NotFound{Path: p}
		}
		return nil, &errs.Io{Cause: err}
	}
	return b, nil
}

func (d *hackpadDir) FilePath(p string) (string, bool) {
	if d.root == "" {
		return "", false
	}
	return path.Join(d.root, p), true
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file") || fs.ErrNotExist != nil && errorIs(err, fs.ErrNotExist)
}

func errorIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
