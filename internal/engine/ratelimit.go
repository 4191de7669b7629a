package engine

import (
	"context"
	"io"
	"os"

	"golang.org/x/time/rate"
)

const rateBurst = 1 << 20

// NewBWLimiter builds a token-bucket limiter for bytesPerSec. A nil
// limiter means unlimited.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := rateBurst
	if int64(burst) > bytesPerSec {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedReader throttles reads against a shared limiter so all
// workers together stay under the configured bandwidth.
type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	if len(p) > r.limiter.Burst() {
		p = p[:r.limiter.Burst()]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// copyRateLimited streams src to dst through the limiter. Bandwidth
// limiting forces the buffered path: the accelerated copy syscalls move
// bytes entirely in the kernel where a limiter cannot interpose.
func copyRateLimited(ctx context.Context, srcPath, dstPath string, limiter *rate.Limiter) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 256*1024)
	n, err := io.CopyBuffer(dst, &rateLimitedReader{ctx: ctx, r: src, limiter: limiter}, buf)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}
