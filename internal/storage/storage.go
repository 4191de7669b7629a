// Package storage defines the capability interfaces that connect the
// transfer engines to concrete storage media. Backends expose whole-tree
// operations (list/get/put/delete/exists); the narrower Source and Sink
// sets cover the read and write halves of a transfer. Engines hold
// Backend values and upgrade to Source/Sink where a capability is needed,
// so a backend only has to implement what it can actually do.
package storage

import (
	"errors"
	"os"
	"time"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound reports that a path was absent at access time.
	ErrNotFound = errors.New("path not found")

	// ErrUnsupportedScheme reports a location with a protocol prefix no
	// backend handles.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// FileEntry describes a single filesystem entry reported by a backend.
// Path is in the backend's own namespace (absolute for the local backend,
// absolute remote path for SFTP).
type FileEntry struct {
	ModTime time.Time
	Path    string
	Size    int64
	Mode    os.FileMode
	IsDir   bool
}

// IsSymlink reports whether the entry is a symbolic link.
func (e FileEntry) IsSymlink() bool {
	return e.Mode&os.ModeSymlink != 0
}

// Capabilities describes what a backend supports. Engines query this once
// per invocation and branch on the result, never on the concrete type.
type Capabilities struct {
	// LocalFS means the backend's paths resolve directly on the local
	// filesystem, enabling the OS-accelerated copy path and byte-range
	// access for chunked sync. Purely a performance hint: the Get/Put
	// fallback must produce identical results.
	LocalFS bool

	// NativeHash means Hash does not transfer file bytes to the caller.
	NativeHash bool
}

// Backend is the whole-tree capability set every storage medium exposes.
type Backend interface {
	// List returns the immediate children of a directory path.
	List(path string) ([]FileEntry, error)

	// Stat returns metadata for a single path without following symlinks.
	Stat(path string) (FileEntry, error)

	// Get reads and returns the full contents of a file.
	Get(path string) ([]byte, error)

	// Put writes data to path, creating parent directories as needed.
	Put(path string, data []byte) error

	// Delete removes a file or directory; directories are removed
	// recursively.
	Delete(path string) error

	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// Caps returns the backend's capabilities.
	Caps() Capabilities
}

// Source is the read-side capability set used by the sync engines.
type Source interface {
	// Hash returns a hex digest of the file content, or an error if the
	// backend cannot hash the path.
	Hash(path string) (string, error)

	// Read returns the file's content.
	Read(path string) ([]byte, error)

	// IsSymlink reports whether path is a symbolic link.
	IsSymlink(path string) bool

	// ReadLink returns a symlink's target, verbatim.
	ReadLink(path string) (string, error)
}

// Sink is the write-side capability set used by the sync engines.
type Sink interface {
	// Exists reports whether path exists at the destination.
	Exists(path string) (bool, error)

	// Hash returns a hex digest of the destination file content.
	Hash(path string) (string, error)

	// MkdirAll creates a directory and all missing parents. Idempotent.
	MkdirAll(path string) error

	// Symlink creates a symbolic link at link pointing to target,
	// replacing any existing entry at link.
	Symlink(target, link string) error

	// CopyFrom copies a local file at srcPath into the sink at dstPath,
	// creating parent directories as needed.
	CopyFrom(srcPath, dstPath string) error
}

// Walk calls fn for every entry under root, depth-first, starting with
// root itself. Listing faults on individual directories are skipped so a
// partially readable tree still yields everything reachable. The walk is
// iterative to survive arbitrarily deep trees.
func Walk(b Backend, root string, fn func(entry FileEntry) error) error {
	rootEntry, err := b.Stat(root)
	if err != nil {
		return err
	}
	if err := fn(rootEntry); err != nil {
		return err
	}
	if !rootEntry.IsDir {
		return nil
	}

	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := b.List(dir)
		if err != nil {
			continue // unreadable directory, skip subtree
		}
		for _, entry := range entries {
			if err := fn(entry); err != nil {
				return err
			}
			if entry.IsDir {
				stack = append(stack, entry.Path)
			}
		}
	}
	return nil
}
