package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Progress writes one line per workflow step.
type Progress struct {
	w io.Writer
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Printf implements the provision and decommission observers.
func (p *Progress) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Interactive reports whether stdin and stdout are both terminals, which
// the selector and confirmation prompts need.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
