package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// Unit selects how a Bar formats its counts.
type Unit int

const (
	Bytes Unit = iota
	Items
)

const barRefresh = 200 * time.Millisecond

// Bar renders a single-line progress bar to a terminal, rewriting it in
// place. On a non-terminal writer it degrades to a periodic plain line
// every few seconds. Counting is lock-free; only rendering takes a lock.
type Bar struct {
	Counter

	w        io.Writer
	unit     Unit
	start    time.Time
	interval time.Duration
	isTTY    bool

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
	closed bool
}

// NewBar creates and starts a progress bar writing to w.
func NewBar(w io.Writer, unit Unit) *Bar {
	b := &Bar{
		w:        w,
		unit:     unit,
		start:    time.Now(),
		interval: barRefresh,
		isTTY:    writerIsTerminal(w),
	}
	if !b.isTTY {
		b.interval = 2 * time.Second
	}

	b.ticker = time.NewTicker(b.interval)
	b.done = make(chan struct{})
	go b.loop()
	return b
}

func (b *Bar) loop() {
	for {
		select {
		case <-b.ticker.C:
			b.render("")
		case <-b.done:
			return
		}
	}
}

// Finish stops the ticker and prints the final line.
func (b *Bar) Finish(msg string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.ticker.Stop()
	close(b.done)
	b.render(msg)
	if b.isTTY {
		fmt.Fprintln(b.w)
	}
}

func (b *Bar) render(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	done := b.Done()
	total := b.Total()
	elapsed := time.Since(b.start).Round(time.Second)

	var line string
	if total > 0 {
		pct := float64(done) / float64(total)
		if pct > 1 {
			pct = 1
		}
		line = fmt.Sprintf("[%s] [%s] %s/%s%s",
			elapsed, renderTicks(pct, 40),
			b.format(done), b.format(total), suffix(msg))
	} else {
		// Total not yet known; show raw progress.
		line = fmt.Sprintf("[%s] %s%s", elapsed, b.format(done), suffix(msg))
	}

	if b.isTTY {
		fmt.Fprintf(b.w, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(b.w, line)
	}
}

func (b *Bar) format(n int64) string {
	if b.unit == Bytes {
		return humanize.IBytes(uint64(n))
	}
	return humanize.Comma(n)
}

func renderTicks(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

func suffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " " + msg
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
