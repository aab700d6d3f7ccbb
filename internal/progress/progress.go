// Package progress wraps schollz/progressbar with enabled/disabled
// handling so the scheduler can describe its run without branching on
// whether a progress bar is wanted.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling. All methods are
// no-ops when disabled, so callers never need a nil check.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New creates a spinner-mode progress bar describing the task queue, or a
// disabled Bar whose methods are no-ops when enabled is false - the
// engine has no fixed amount of work upfront, since recursion can
// discover arbitrarily many files.
func New(enabled bool) *Bar {
	if !enabled {
		return &Bar{}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)

	return &Bar{bar: bar}
}

// Describe updates the spinner's description line.
func (b *Bar) Describe(s fmt.Stringer) {
	if b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish stops the spinner and prints a final summary line.
func (b *Bar) Finish(s fmt.Stringer) {
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+s.String())
	}
}
