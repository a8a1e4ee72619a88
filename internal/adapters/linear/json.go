package linear

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
)

var _ ports.Renderer = (*JSONRenderer)(nil)

// JSONRenderer writes each report as one JSON document per line.
// Progress callbacks are ignored.
type JSONRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// Report is the JSON document written for one compile.
type Report struct {
	RunID       string                   `json:"run_id"`
	Failed      bool                     `json:"failed"`
	Files       []domain.FileResult      `json:"files"`
	Diagnostics domain.Diagnostics       `json:"diagnostics"`
	Summary     domain.DiagnosticSummary `json:"summary"`
	Stats       ReportStats              `json:"stats"`
}

// ReportStats adds the derived hit rate to domain.Stats.
type ReportStats struct {
	domain.Stats
	HitRate float64 `json:"hit_rate"`
}

// NewJSONRenderer creates a JSONRenderer writing to w, or stdout when w is nil.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

// Start is a no-op.
func (r *JSONRenderer) Start(_ context.Context) error { return nil }

// Stop is a no-op.
func (r *JSONRenderer) Stop() error { return nil }

// OnPlanEmit is a no-op.
func (r *JSONRenderer) OnPlanEmit([][]string) {}

// OnUnitStart is a no-op.
func (r *JSONRenderer) OnUnitStart(string, string, time.Time) {}

// OnUnitComplete is a no-op.
func (r *JSONRenderer) OnUnitComplete(string, time.Time, error, bool) {}

// Report encodes result.
func (r *JSONRenderer) Report(result *domain.CompileResult) error {
	doc := Report{
		RunID:       result.RunID,
		Failed:      result.Failed(),
		Files:       result.Files,
		Diagnostics: result.Diagnostics,
		Summary:     result.Diagnostics.Summarize(),
		Stats:       ReportStats{Stats: result.Stats, HitRate: result.Stats.HitRate()},
	}
	if doc.Files == nil {
		doc.Files = []domain.FileResult{}
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = domain.Diagnostics{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(doc)
}
