// Package linear renders build progress and reports as line-oriented text.
package linear

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/ui/output"
	"go.trai.ch/synapse/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// ProjectGroup heads diagnostics that belong to no file.
const ProjectGroup = "(project)"

// Renderer prints a grouped diagnostic report and a summary line to stdout.
// When verbose, per-unit progress goes to stderr as units finish.
type Renderer struct {
	stdout  *termenv.Output
	stderr  *termenv.Output
	verbose bool

	mu    sync.Mutex
	units map[string]unitState
}

type unitState struct {
	name  string
	start time.Time
}

// NewRenderer creates a Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer, verbose bool) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Renderer{
		stdout:  output.New(stdout),
		stderr:  output.New(stderr),
		verbose: verbose,
		units:   make(map[string]unitState),
	}
}

// Start is a no-op; the renderer writes synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop forgets units that never completed.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.units)
	return nil
}

// OnPlanEmit prints the size of the plan in verbose mode.
func (r *Renderer) OnPlanEmit(layers [][]string) {
	if !r.verbose {
		return
	}
	n := 0
	for _, l := range layers {
		n += len(l)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.stderr, "Compiling %d unit(s) in %d layer(s)\n", n, len(layers))
}

// OnUnitStart records when a unit began.
func (r *Renderer) OnUnitStart(spanID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[spanID] = unitState{name: name, start: startTime}
}

// OnUnitComplete prints the outcome of a unit in verbose mode.
func (r *Renderer) OnUnitComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[spanID]
	if !ok {
		return
	}
	delete(r.units, spanID)
	if !r.verbose {
		return
	}

	prefix := r.stderr.String("[" + u.name + "]").Faint().String()
	elapsed := endTime.Sub(u.start).Round(time.Millisecond)
	switch {
	case err != nil:
		mark := r.stderr.String(style.Cross).Foreground(r.stderr.Color(string(style.Failure))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s failed after %v: %v\n", prefix, mark, elapsed, err)
	case cached:
		mark := r.stderr.String(style.Cached).Foreground(r.stderr.Color(string(style.Accent))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s cached\n", prefix, mark)
	default:
		mark := r.stderr.String(style.Check).Foreground(r.stderr.Color(string(style.Success))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s compiled in %v\n", prefix, mark, elapsed)
	}
}

// Report prints the diagnostics of result grouped by file, then the summary line.
func (r *Renderer) Report(result *domain.CompileResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, groups := result.Diagnostics.ByFile()
	for _, file := range files {
		header := file
		if header == "" {
			header = ProjectGroup
		}
		if _, err := fmt.Fprintln(r.stdout, r.stdout.String(header).Bold().String()); err != nil {
			return err
		}
		for _, d := range groups[file] {
			if _, err := fmt.Fprintf(r.stdout, "  %s\n", r.diagnosticLine(d)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(r.stdout); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(r.stdout, r.summaryLine(result))
	return err
}

func (r *Renderer) diagnosticLine(d domain.Diagnostic) string {
	var sev termenv.Style
	switch d.Severity {
	case domain.SeverityError:
		sev = r.stdout.String(d.Severity.String()).Foreground(r.stdout.Color(string(style.Failure)))
	case domain.SeverityWarning:
		sev = r.stdout.String(d.Severity.String()).Foreground(r.stdout.Color(string(style.Caution)))
	default:
		sev = r.stdout.String(d.Severity.String()).Foreground(r.stdout.Color(string(style.Muted)))
	}
	pos := ""
	if d.Line > 0 {
		pos = fmt.Sprintf("%d:%d ", d.Line, d.Column)
	}
	return fmt.Sprintf("%s%s %s: %s", pos, sev.String(), d.Code, d.Message)
}

func (r *Renderer) summaryLine(result *domain.CompileResult) string {
	s := result.Stats
	mark := r.stdout.String(style.Check).Foreground(r.stdout.Color(string(style.Success)))
	if result.Failed() {
		mark = r.stdout.String(style.Cross).Foreground(r.stdout.Color(string(style.Failure)))
	}
	sum := result.Diagnostics.Summarize()
	return fmt.Sprintf("%s %d file(s): %d succeeded, %d failed, %d error(s), %d warning(s) | cache %d hit(s), %d miss(es), %.0f%% | %v",
		mark.String(), s.Files, s.Succeeded, s.Failed, sum.Errors, sum.Warnings,
		s.CacheHits, s.CacheMisses, s.HitRate()*100, s.Duration.Round(time.Millisecond))
}
