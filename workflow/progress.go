package workflow

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Progress renders a spinner for indeterminate waits and a countdown bar for
// fixed inter-job waits. Everything goes to stderr, and only when attached
// to a terminal, so the run log stays clean.
type Progress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	writer  io.Writer
}

func NewProgress() *Progress {
	writer := io.Discard
	if isatty.IsTerminal(os.Stderr.Fd()) {
		writer = os.Stderr
	}
	return &Progress{writer: writer}
}

// StartSpinner shows an indeterminate spinner with the given label,
// replacing the label if one is already running.
func (p *Progress) StartSpinner(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.spinner != nil {
		p.spinner.Suffix = " " + label
		return
	}
	sp := spinner.New(spinner.CharSets[11], 120*time.Millisecond,
		spinner.WithWriter(p.writer), spinner.WithColor("fgCyan"))
	sp.Suffix = " " + label
	sp.Start()
	p.spinner = sp
}

func (p *Progress) StopSpinner() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}

// Countdown blocks for d, ticking down second by second on a visible bar.
func (p *Progress) Countdown(ctx context.Context, d time.Duration, label string) {
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return
	}

	bar := progressbar.NewOptions(seconds,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(label),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
	for i := 0; i < seconds; i++ {
		sleepCtx(ctx, time.Second)
		if ctx.Err() != nil {
			return
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
}
