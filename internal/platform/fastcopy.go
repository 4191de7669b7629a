package platform

import (
	"os"
	"time"
)

// FastCopy copies a single file through the tier chain: accelerated
// syscalls where the platform has them, then a generic whole-file copy,
// then the manual streaming loop. The first tier that moves bytes wins.
// A successful copy optionally restores the source modification time on
// the destination; that step is cosmetic and its failure is ignored.
func FastCopy(params CopyParams) (CopyResult, error) {
	result := CopyResult{Method: WholeFile}

	if copied, method := copyAccelerated(params.SrcPath, params.DstPath, params.Size); copied > 0 {
		result = CopyResult{BytesCopied: copied, Method: method}
	} else {
		copied, err := copyWholeFile(params.SrcPath, params.DstPath)
		if err == nil {
			result = CopyResult{BytesCopied: copied, Method: WholeFile}
		} else {
			copied, err = CopyStream(params.SrcPath, params.DstPath)
			if err != nil {
				return CopyResult{BytesCopied: copied, Method: Stream}, err
			}
			result = CopyResult{BytesCopied: copied, Method: Stream}
		}
	}

	if params.PreserveTimes && !params.ModTime.IsZero() {
		restoreModTime(params.DstPath, params.ModTime)
	}

	return result, nil
}

// restoreModTime sets the destination mtime to match the source. Failures
// are ignored: the data is already correct, only the timestamp is off.
func restoreModTime(path string, modTime time.Time) {
	_ = os.Chtimes(path, time.Now(), modTime)
}
