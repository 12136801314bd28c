// Package progress provides a terminal spinner that reports training progress.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Indicator is a spinning progress indicator with an optional done/total count.
type Indicator struct {
	frames []string
	delay  time.Duration
	writer io.Writer
	label  string

	mu      sync.RWMutex
	active  bool
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an indicator that writes to writer and shows label.
// ctx allows for cancellation of the spinner goroutine.
func New(ctx context.Context, writer io.Writer, label string) *Indicator {
	indicatorCtx, cancel := context.WithCancel(ctx)
	return &Indicator{
		frames:  []string{"◜", "◠", "◝", "◞", "◡", "◟"},
		delay:   100 * time.Millisecond,
		writer:  writer,
		label:   label,
		message: label,
		ctx:     indicatorCtx,
		cancel:  cancel,
	}
}

// Start begins the spinner animation.
func (p *Indicator) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return
	}
	p.active = true

	p.wg.Add(1)
	go p.run()
}

// Stop stops the animation and clears the line.
func (p *Indicator) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	if IsTerminal(p.writer) {
		fmt.Fprint(p.writer, "\r\033[2K")
	} else {
		fmt.Fprint(p.writer, "\r")
	}
}

// IsActive returns whether the spinner is currently running
func (p *Indicator) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Message returns the text shown next to the spinner.
func (p *Indicator) Message() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// Update sets the count shown after the label, e.g. "Training 40/100 (40%)".
// Its signature matches recommend.WithProgress.
func (p *Indicator) Update(done, total int) {
	msg := p.label
	if total > 0 {
		msg = fmt.Sprintf("%s %d/%d (%d%%)", p.label, done, total, done*100/total)
	}

	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *Indicator) run() {
	defer p.wg.Done()

	frameIndex := 0
	ticker := time.NewTicker(p.delay)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.RLock()
			frame := p.frames[frameIndex%len(p.frames)]
			message := p.message
			p.mu.RUnlock()

			fmt.Fprintf(p.writer, "\r\033[2K%s %s", frame, message)
			frameIndex++
		}
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
