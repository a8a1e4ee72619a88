package domain

import (
	"encoding/json"
	"slices"
)

// SourceMap is a revision 3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Attach returns a copy of m naming the generated file and its single source.
// Cached maps are stored without either so they can be shared across paths.
func (m *SourceMap) Attach(file, source string, content []byte) *SourceMap {
	if m == nil {
		return nil
	}
	out := *m
	out.File = file
	out.Sources = []string{source}
	if content != nil {
		out.SourcesContent = []string{string(content)}
	}
	out.Names = slices.Clone(m.Names)
	return &out
}

// Detach returns a copy of m with file and source information removed.
func (m *SourceMap) Detach() *SourceMap {
	if m == nil {
		return nil
	}
	out := *m
	out.File = ""
	out.Sources = []string{""}
	out.SourcesContent = nil
	out.Names = slices.Clone(m.Names)
	return &out
}

// Encode serializes m as JSON.
func (m *SourceMap) Encode() ([]byte, error) {
	return json.Marshal(m)
}
