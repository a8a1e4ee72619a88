package linear_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/linear"
	"go.trai.ch/synapse/internal/core/domain"
)

func failedResult() *domain.CompileResult {
	r := &domain.CompileResult{
		RunID: "run-1",
		Files: []domain.FileResult{
			{Path: "/p/src/b.ts", RelPath: "src/b.ts", Status: domain.StatusFailed},
			{Path: "/p/src/a.ts", RelPath: "src/a.ts", Status: domain.StatusSucceeded, Cached: true},
		},
		Diagnostics: domain.Diagnostics{
			domain.Warnf(domain.CodeCycle, "src/b.ts", 0, 0, "import cycle src/b.ts -> src/a.ts -> src/b.ts"),
			domain.Errorf(domain.CodeResolution, "src/a.ts", 1, 19, "cannot resolve module specifier './missing'"),
			domain.Warnf(domain.CodeCache, "", 0, 0, "disk tier unavailable"),
		},
	}
	r.Finalize()
	r.Stats.Duration = 1500 * time.Millisecond
	return r
}

func cleanResult() *domain.CompileResult {
	r := &domain.CompileResult{
		Files: []domain.FileResult{
			{Path: "/p/src/a.ts", RelPath: "src/a.ts"},
			{Path: "/p/src/b.ts", RelPath: "src/b.ts"},
			{Path: "/p/src/c.ts", RelPath: "src/c.ts"},
		},
	}
	r.Finalize()
	r.Stats.Duration = 42 * time.Millisecond
	return r
}

func TestRenderer_Report(t *testing.T) {
	tests := []struct {
		name   string
		result *domain.CompileResult
	}{
		{name: "report_failed", result: failedResult()},
		{name: "report_clean", result: cleanResult()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")
			var stdout, stderr bytes.Buffer
			r := linear.NewRenderer(&stdout, &stderr, false)

			require.NoError(t, r.Report(tt.result))

			goldie.New(t).Assert(t, tt.name, stdout.Bytes())
			assert.Empty(t, stderr.String())
		})
	}
}

func TestRenderer_VerboseProgress(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, true)
	require.NoError(t, r.Start(t.Context()))

	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.OnPlanEmit([][]string{{"src/a.ts"}, {"src/b.ts", "src/c.ts"}})
	r.OnUnitStart("s1", "src/a.ts", t0)
	r.OnUnitComplete("s1", t0.Add(12*time.Millisecond), nil, false)
	r.OnUnitStart("s2", "src/b.ts", t0)
	r.OnUnitComplete("s2", t0.Add(time.Millisecond), nil, true)
	r.OnUnitStart("s3", "src/c.ts", t0)
	r.OnUnitComplete("s3", t0.Add(3*time.Millisecond), errors.New("boom"), false)
	r.OnUnitComplete("unknown", t0, nil, false)
	require.NoError(t, r.Stop())

	goldie.New(t).Assert(t, "progress_verbose", stderr.Bytes())
	assert.Empty(t, stdout.String())
}

func TestRenderer_QuietProgress(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, false)

	r.OnPlanEmit([][]string{{"src/a.ts"}})
	r.OnUnitStart("s1", "src/a.ts", time.Now())
	r.OnUnitComplete("s1", time.Now(), errors.New("boom"), false)

	assert.Empty(t, stderr.String())
	assert.Empty(t, stdout.String())
}

func TestJSONRenderer_Report(t *testing.T) {
	var buf bytes.Buffer
	r := linear.NewJSONRenderer(&buf)

	require.NoError(t, r.Report(failedResult()))
	require.NoError(t, r.Report(cleanResult()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, true, doc["failed"])

	stats, ok := doc["stats"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2, stats["files"], 0)
	assert.InDelta(t, 0.5, stats["hit_rate"], 0)

	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1, summary["errors"], 0)
	assert.InDelta(t, 2, summary["warnings"], 0)

	files, ok := doc["files"].([]any)
	require.True(t, ok)
	first, ok := files[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "src/a.ts", first["rel_path"])
	assert.Equal(t, "succeeded", first["status"])

	require.NoError(t, json.Unmarshal(lines[1], &doc))
	assert.Equal(t, false, doc["failed"])
	assert.Equal(t, []any{}, doc["diagnostics"])
}
