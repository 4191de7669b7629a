// Package platform implements the single-file fast-copy primitive. It
// tries OS-accelerated mechanisms in a fixed order and degrades to plain
// buffered streaming, so callers always get a byte-identical destination
// regardless of which tier succeeded.
package platform

import "time"

// CopyMethod identifies which strategy completed a copy.
type CopyMethod int

const (
	Reflink       CopyMethod = iota // same-filesystem CoW clone
	CopyFileRange                   // kernel-mediated range copy loop
	Sendfile                        // zero-copy transfer loop
	WholeFile                       // generic whole-file copy
	Stream                          // manual buffered read/write loop
)

func (m CopyMethod) String() string {
	switch m {
	case Reflink:
		return "reflink"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case WholeFile:
		return "whole_file"
	case Stream:
		return "stream"
	default:
		return "unknown"
	}
}

// CopyParams describes a whole-file copy.
type CopyParams struct {
	ModTime       time.Time // source mtime; zero = unknown
	SrcPath       string
	DstPath       string
	Size          int64
	PreserveTimes bool
}

// CopyResult reports the outcome of a copy.
type CopyResult struct {
	BytesCopied int64
	Method      CopyMethod
}
