package seekzip

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

var (
	_ fs.FS        = (*zipFS)(nil)
	_ fs.StatFS    = (*zipFS)(nil)
	_ fs.ReadDirFS = (*zipFS)(nil)
)

// zipFS adapts a Reader to a read-only filesystem. The entry list is
// immutable after open, so no locking is needed; file opens go through
// OpenEntry and inherit its single-stream rule.
type zipFS struct {
	r *Reader
}

// Open implements fs.FS, allowing the archive to be used as a read-only filesystem.
func (zfs *zipFS) Open(name string) (fs.File, error) {
	index, entry, err := zfs.getEntry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if entry.isDir {
		return &fsDir{entry: entry, r: zfs.r}, nil
	}

	rc, err := zfs.r.OpenEntry(index)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{entry: entry, rc: rc}, nil
}

// Stat implements fs.StatFS.
func (zfs *zipFS) Stat(name string) (fs.FileInfo, error) {
	_, entry, err := zfs.getEntry(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return fileInfoAdapter{entry}, nil
}

// ReadDir implements fs.ReadDirFS.
func (zfs *zipFS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := zfs.Open(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

// getEntry resolves a path to its entry and index. It handles the root
// directory, explicit entries, and directories that exist only implicitly as
// path prefixes of stored names.
func (zfs *zipFS) getEntry(name string) (int, *Entry, error) {
	if !fs.ValidPath(name) {
		return 0, nil, fs.ErrInvalid
	}

	if name == "." {
		return 0, syntheticDir("."), nil
	}

	if i, e, err := zfs.r.FindEntry(name); err == nil {
		return i, e, nil
	}

	if zfs.hasImplicitDir(name) {
		return 0, syntheticDir(name), nil
	}

	return 0, nil, fs.ErrNotExist
}

func (zfs *zipFS) hasImplicitDir(name string) bool {
	prefix := name + "/"
	for _, e := range zfs.r.entries {
		if strings.HasPrefix(e.name, prefix) {
			return true
		}
	}
	return false
}

func syntheticDir(name string) *Entry {
	return &Entry{
		name:    name,
		isDir:   true,
		mode:    fs.ModeDir | 0755,
		modTime: time.Now(),
	}
}

// fsFile wraps an open entry stream to satisfy fs.File
type fsFile struct {
	entry *Entry
	rc    io.ReadCloser
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fileInfoAdapter{f.entry}, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.rc.Read(b) }
func (f *fsFile) Close() error               { return f.rc.Close() }

// fsDir wraps a directory entry to satisfy fs.ReadDirFile
type fsDir struct {
	entry *Entry
	r     *Reader
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return fileInfoAdapter{d.entry}, nil }
func (d *fsDir) Close() error               { return nil }
func (d *fsDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.entry.name, Err: fs.ErrInvalid}
}

// ReadDir searches the entry list for the directory's immediate children.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	dirPath := d.entry.name
	if dirPath == "." {
		dirPath = ""
	} else if !strings.HasSuffix(dirPath, "/") {
		dirPath += "/"
	}

	seen := make(map[string]bool)
	var entries []fs.DirEntry

	for _, e := range d.r.entries {
		if !strings.HasPrefix(e.name, dirPath) {
			continue
		}

		rel := strings.TrimPrefix(e.name, dirPath)
		if rel == "" {
			continue
		}

		parts := strings.SplitN(rel, "/", 2)
		childName := parts[0]

		if seen[childName] {
			continue
		}
		seen[childName] = true

		isDir := len(parts) > 1 || e.isDir
		entries = append(entries, fsDirEntryAdapter{
			name:  childName,
			isDir: isDir,
			info:  fileInfoAdapter{e},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if n <= 0 {
		return entries, nil
	}

	if len(entries) <= n {
		return entries, io.EOF
	}

	return entries[:n], nil
}

type fileInfoAdapter struct{ e *Entry }

func (i fileInfoAdapter) Name() string       { return path.Base(i.e.name) }
func (i fileInfoAdapter) Size() int64        { return i.e.uncompressedSize }
func (i fileInfoAdapter) Mode() fs.FileMode  { return i.e.mode }
func (i fileInfoAdapter) ModTime() time.Time { return i.e.modTime }
func (i fileInfoAdapter) IsDir() bool        { return i.e.isDir }
func (i fileInfoAdapter) Sys() interface{}   { return nil }

type fsDirEntryAdapter struct {
	name  string
	isDir bool
	info  fs.FileInfo
}

func (e fsDirEntryAdapter) Name() string               { return e.name }
func (e fsDirEntryAdapter) IsDir() bool                { return e.isDir }
func (e fsDirEntryAdapter) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e fsDirEntryAdapter) Info() (fs.FileInfo, error) { return e.info, nil }
