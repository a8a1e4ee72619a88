package domain

import (
	"slices"
	"strings"
	"time"
)

// FileStatus is the outcome of compiling one unit.
type FileStatus uint8

const (
	// StatusSucceeded means code was emitted, possibly with warnings.
	StatusSucceeded FileStatus = iota
	// StatusFailed means the unit produced no output.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s FileStatus) String() string {
	if s == StatusFailed {
		return "failed"
	}
	return "succeeded"
}

// MarshalText implements encoding.TextMarshaler.
func (s FileStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FileResult is the per-file part of a CompileResult.
type FileResult struct {
	// Path is the absolute source path.
	Path string `json:"path"`
	// RelPath is Path relative to the project root.
	RelPath       string        `json:"rel_path"`
	Status        FileStatus    `json:"status"`
	Code          []byte        `json:"-"`
	Map           *SourceMap    `json:"-"`
	Cached        bool          `json:"cached"`
	CycleAffected bool          `json:"cycle_affected,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	Key           CacheKey      `json:"key"`
}

// Succeeded reports whether the unit emitted code.
func (f *FileResult) Succeeded() bool {
	return f.Status == StatusSucceeded
}

// Stats are the aggregate numbers of one compile request.
type Stats struct {
	Files       int           `json:"files"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	CacheHits   int           `json:"cache_hits"`
	CacheMisses int           `json:"cache_misses"`
	Layers      int           `json:"layers"`
	Duration    time.Duration `json:"duration_ns"`
}

// HitRate returns hits over lookups, or zero when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// CompileResult is the immutable response to one compile request.
type CompileResult struct {
	RunID       string       `json:"run_id"`
	Files       []FileResult `json:"files"`
	Diagnostics Diagnostics  `json:"diagnostics"`
	Stats       Stats        `json:"stats"`
}

// Failed reports whether any file failed or any diagnostic has error severity.
func (r *CompileResult) Failed() bool {
	return r.Stats.Failed > 0 || r.Diagnostics.HasErrors()
}

// File returns the result for the source at path.
func (r *CompileResult) File(path string) (*FileResult, bool) {
	i, found := slices.BinarySearchFunc(r.Files, path, func(f FileResult, p string) int {
		return strings.Compare(f.Path, p)
	})
	if !found {
		return nil, false
	}
	return &r.Files[i], true
}

// Finalize sorts files and diagnostics and recomputes the counters from Files.
// Duration and Layers are left untouched.
func (r *CompileResult) Finalize() {
	slices.SortFunc(r.Files, func(a, b FileResult) int { return strings.Compare(a.Path, b.Path) })
	r.Diagnostics.Sort()
	r.Stats.Files = len(r.Files)
	r.Stats.Succeeded, r.Stats.Failed = 0, 0
	r.Stats.CacheHits, r.Stats.CacheMisses = 0, 0
	for i := range r.Files {
		f := &r.Files[i]
		if f.Succeeded() {
			r.Stats.Succeeded++
		} else {
			r.Stats.Failed++
		}
		if f.Cached {
			r.Stats.CacheHits++
		} else {
			r.Stats.CacheMisses++
		}
	}
}
