// Package report renders run progress for a terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Reporter writes the countdown line and the final summary. Log output
// routed through LogWriter does not collide with the countdown line.
type Reporter struct {
	w           io.Writer
	interactive bool

	mu      sync.Mutex
	pending bool

	title lipgloss.Style
	label lipgloss.Style
	plain lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	muted lipgloss.Style
}

// New creates a reporter on w. Countdown output is only shown when w is a
// terminal.
func New(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:           w,
		interactive: isTerminal(w),
		title:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		label:       r.NewStyle().Width(12),
		plain:       r.NewStyle(),
		ok:          r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		bad:         r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		muted:       r.NewStyle().Foreground(lipgloss.Color("#999999")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatCountdown renders the wait before the next request, rounded up to
// whole seconds.
func FormatCountdown(remaining time.Duration) string {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("next request in %ds", secs)
}

// Countdown redraws the countdown line. Suitable as a ratelimit hook.
func (r *Reporter) Countdown(remaining time.Duration) {
	if !r.interactive {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "\r\033[K%s", r.muted.Render(FormatCountdown(remaining)))
	r.pending = true
}

// LogWriter returns a writer for the log package that clears a visible
// countdown line before each record.
func (r *Reporter) LogWriter() io.Writer {
	return logWriter{r}
}

type logWriter struct {
	r *Reporter
}

func (lw logWriter) Write(p []byte) (int, error) {
	lw.r.mu.Lock()
	defer lw.r.mu.Unlock()
	if lw.r.pending {
		io.WriteString(lw.r.w, "\r\033[K")
		lw.r.pending = false
	}
	return lw.r.w.Write(p)
}

// Summary writes the end-of-run report. failures are the records added by
// this run.
func (r *Reporter) Summary(sum domain.Summary, failures []domain.FailureRecord, outDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		io.WriteString(r.w, "\r\033[K")
		r.pending = false
	}

	var b strings.Builder
	b.WriteString(r.title.Render("Run summary") + "\n")
	row := func(name string, n int, style lipgloss.Style) {
		value := humanize.Comma(int64(n))
		if n > 0 {
			value = style.Render(value)
		}
		b.WriteString("  " + r.label.Render(name) + value + "\n")
	}
	row("Total", sum.Total, r.plain)
	row("Skipped", sum.Skipped, r.muted)
	row("Succeeded", sum.Succeeded, r.ok)
	row("Failed", sum.Failed, r.bad)
	row("Invalid", sum.Invalid, r.bad)
	row("Remaining", sum.Remaining, r.bad)
	if outDir != "" {
		b.WriteString("  " + r.label.Render("Output") + outDir + "\n")
	}

	if len(failures) > 0 {
		b.WriteString(r.title.Render("Failures this run") + "\n")
		for _, f := range failures {
			line := fmt.Sprintf("  %s  %s", f.URL, r.bad.Render(string(f.Reason)))
			if f.Detail != "" {
				line += r.muted.Render(": " + f.Detail)
			}
			b.WriteString(line + "\n")
		}
	}
	io.WriteString(r.w, b.String())
}
