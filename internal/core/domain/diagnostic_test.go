package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/core/domain"
)

func TestDiagnostics_Sort(t *testing.T) {
	ds := domain.Diagnostics{
		domain.Warnf(domain.CodeCycle, "b.ts", 1, 1, "cycle"),
		domain.Errorf(domain.CodeParse, "a.ts", 3, 4, "unexpected token"),
		domain.Errorf(domain.CodeResolution, "a.ts", 1, 20, "cannot resolve './x'"),
		domain.Errorf(domain.CodeParse, "a.ts", 1, 20, "unexpected token"),
	}
	ds.Sort()

	got := make([]string, len(ds))
	for i, d := range ds {
		got[i] = d.String()
	}
	assert.Equal(t, []string{
		"a.ts:1:20: error PARSE_ERROR: unexpected token",
		"a.ts:1:20: error RESOLUTION_ERROR: cannot resolve './x'",
		"a.ts:3:4: error PARSE_ERROR: unexpected token",
		"b.ts:1:1: warning CYCLE_DETECTED: cycle",
	}, got)
}

func TestDiagnostics_SummarizeAndHasErrors(t *testing.T) {
	ds := domain.Diagnostics{
		domain.Warnf(domain.CodeOpaqueImport, "a.ts", 1, 1, "opaque"),
		domain.NewDiagnostic(domain.CodeCache, domain.SeverityInfo, "", 0, 0, "note"),
	}
	assert.False(t, ds.HasErrors())
	assert.Equal(t, domain.DiagnosticSummary{Warnings: 1, Infos: 1}, ds.Summarize())

	ds = append(ds, domain.Errorf(domain.CodeParse, "a.ts", 1, 1, "bad"))
	assert.True(t, ds.HasErrors())
	assert.Equal(t, 1, ds.Summarize().Errors)
}

func TestDiagnostic_Position(t *testing.T) {
	assert.Equal(t, "", domain.Diagnostic{}.Position())
	assert.Equal(t, "a.ts", domain.Diagnostic{File: "a.ts"}.Position())
	assert.Equal(t, "a.ts:2:7", domain.Diagnostic{File: "a.ts", Line: 2, Column: 7}.Position())
}

func TestDiagnostics_WithFileAndByFile(t *testing.T) {
	stripped := domain.Diagnostics{domain.Warnf(domain.CodeOpaqueImport, "", 2, 1, "x")}
	attached := stripped.WithFile("/p/src/a.ts")
	assert.Empty(t, stripped[0].File)
	assert.Equal(t, "/p/src/a.ts", attached[0].File)

	all := append(attached, domain.Errorf(domain.CodeParse, "/p/src/0.ts", 1, 1, "y"))
	files, groups := all.ByFile()
	assert.Equal(t, []string{"/p/src/0.ts", "/p/src/a.ts"}, files)
	assert.Len(t, groups["/p/src/a.ts"], 1)
}

func TestSeverity_JSON(t *testing.T) {
	out, err := json.Marshal(domain.Errorf(domain.CodeParse, "a.ts", 1, 2, "m"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"PARSE_ERROR","severity":"error","file":"a.ts","line":1,"column":2,"message":"m"}`, string(out))

	var d domain.Diagnostic
	require.NoError(t, json.Unmarshal(out, &d))
	assert.Equal(t, domain.SeverityError, d.Severity)
}

func TestExportShape(t *testing.T) {
	s := &domain.ExportShape{}
	s.Add(domain.ExportBinding{Name: "z", Kind: domain.ExportConst})
	s.Add(domain.ExportBinding{Name: "a", Kind: domain.ExportFunction})
	s.Add(domain.ExportBinding{Name: "default", Kind: domain.ExportClass})
	s.Add(domain.ExportBinding{Name: "z", Kind: domain.ExportMutable})

	require.Len(t, s.Exports, 2)
	assert.Equal(t, "a", s.Exports[0].Name)
	assert.True(t, s.HasDefault)
	b, ok := s.Lookup("z")
	require.True(t, ok)
	assert.Equal(t, domain.ExportMutable, b.Kind)
	assert.True(t, s.Known())
	assert.Equal(t, `default;"a":function;"z":mutable;`, s.Canonical())

	assert.Equal(t, "dynamic", domain.DynamicShape().Canonical())
	assert.False(t, domain.DynamicShape().Known())
	var nilShape *domain.ExportShape
	_, ok = nilShape.Lookup("a")
	assert.False(t, ok)
}

func TestExportShape_CanonicalMembersSorted(t *testing.T) {
	s := &domain.ExportShape{}
	s.Add(domain.ExportBinding{Name: "E", Kind: domain.ExportConstEnum, Members: map[string]string{"B": "1", "A": "0"}})
	assert.Equal(t, `"E":const-enum{"A"=0,"B"=1,};`, s.Canonical())
}

func TestCompileResult_Finalize(t *testing.T) {
	r := &domain.CompileResult{
		Files: []domain.FileResult{
			{Path: "/p/b.ts", Status: domain.StatusFailed},
			{Path: "/p/a.ts", Status: domain.StatusSucceeded, Cached: true},
			{Path: "/p/c.ts", Status: domain.StatusSucceeded},
		},
	}
	r.Finalize()

	assert.Equal(t, "/p/a.ts", r.Files[0].Path)
	assert.Equal(t, domain.Stats{Files: 3, Succeeded: 2, Failed: 1, CacheHits: 1, CacheMisses: 2}, r.Stats)
	assert.InDelta(t, 1.0/3.0, r.Stats.HitRate(), 1e-9)
	assert.True(t, r.Failed())

	f, ok := r.File("/p/c.ts")
	require.True(t, ok)
	assert.True(t, f.Succeeded())
	_, ok = r.File("/p/missing.ts")
	assert.False(t, ok)
}

func TestCacheKey_HexRoundTrip(t *testing.T) {
	var k domain.CacheKey
	k[0], k[31] = 0xab, 0x01
	parsed, err := domain.ParseCacheKey(k.Hex())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = domain.ParseCacheKey("abc")
	assert.Error(t, err)
}
