package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

const progressWidth = 40

// progressBar draws scan progress on a single terminal line. A disabled
// bar only prints notes.
type progressBar struct {
	w       io.Writer
	model   progress.Model
	enabled bool
	drawn   bool
	last    uint8
}

func newProgressBar(w io.Writer, enabled bool) *progressBar {
	return &progressBar{
		w:       w,
		model:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		enabled: enabled,
	}
}

// Set redraws the bar at percent.
func (p *progressBar) Set(percent uint8) {
	if !p.enabled || (p.drawn && percent == p.last) {
		return
	}
	p.last = percent
	p.drawn = true
	fmt.Fprintf(p.w, "\r%s", p.model.ViewAs(float64(percent)/100))
}

// Note prints msg on its own line and keeps the bar below it.
func (p *progressBar) Note(msg string) {
	if p.enabled && p.drawn {
		fmt.Fprintf(p.w, "\r\033[K%s\n%s", msg, p.model.ViewAs(float64(p.last)/100))
		return
	}
	fmt.Fprintln(p.w, msg)
}

// Finish ends the bar's line.
func (p *progressBar) Finish() {
	if p.enabled && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
