package platform

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const streamBufferSize = 1 << 20 // 1 MiB

var streamBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, streamBufferSize)
		return &b
	},
}

// copyWholeFile is the generic platform-level fallback: open both files
// and let io.Copy pick the best transfer it can.
func copyWholeFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dstPath, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("copy %s -> %s: %w", srcPath, dstPath, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", dstPath, err)
	}
	return n, nil
}

// CopyStream is the last-resort manual loop: read into a pooled 1 MiB
// buffer, write out, repeat. Works across any two byte-addressable file
// handles.
func CopyStream(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dstPath, err)
	}

	bufp := streamBufPool.Get().(*[]byte)
	defer streamBufPool.Put(bufp)
	buf := *bufp

	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				dst.Close()
				return total, fmt.Errorf("write %s: %w", dstPath, writeErr)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			return total, fmt.Errorf("read %s: %w", srcPath, readErr)
		}
	}

	if err := dst.Close(); err != nil {
		return total, fmt.Errorf("close %s: %w", dstPath, err)
	}
	return total, nil
}
