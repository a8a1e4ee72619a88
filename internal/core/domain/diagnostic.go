package domain

import (
	"cmp"
	"fmt"
	"slices"
)

// Severity is the severity of a diagnostic.
type Severity uint8

const (
	// SeverityError fails the build.
	SeverityError Severity = iota
	// SeverityWarning is reported but never fails the build.
	SeverityWarning
	// SeverityInfo is purely informational.
	SeverityInfo
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Code is the stable machine-readable identifier of a diagnostic.
type Code string

const (
	// CodeResolution marks a specifier that maps to no file, alias or external.
	CodeResolution Code = "RESOLUTION_ERROR"
	// CodeParse marks malformed syntax.
	CodeParse Code = "PARSE_ERROR"
	// CodeTransform marks an unsupported construct or internal transform failure.
	CodeTransform Code = "TRANSFORM_ERROR"
	// CodeCache marks a cache read or write that failed and degraded.
	CodeCache Code = "CACHE_ERROR"
	// CodeConfiguration marks invalid or contradictory configuration.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeCycle marks an import cycle that was broken for ordering.
	CodeCycle Code = "CYCLE_DETECTED"
	// CodeOpaqueImport marks an import rewritten without its dependency's export shape.
	CodeOpaqueImport Code = "OPAQUE_IMPORT"
	// CodeMissingExport marks a named import the dependency does not export.
	CodeMissingExport Code = "MISSING_EXPORT"
)

// Diagnostic is one error, warning or note tied to a source position.
// Line and Column are 1-based; zero means the position is unknown.
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
}

// NewDiagnostic creates a diagnostic.
func NewDiagnostic(code Code, sev Severity, file string, line, col int, msg string) Diagnostic {
	return Diagnostic{Code: code, Severity: sev, File: file, Line: line, Column: col, Message: msg}
}

// Errorf creates an error-severity diagnostic with a formatted message.
func Errorf(code Code, file string, line, col int, format string, args ...any) Diagnostic {
	return NewDiagnostic(code, SeverityError, file, line, col, fmt.Sprintf(format, args...))
}

// Warnf creates a warning-severity diagnostic with a formatted message.
func Warnf(code Code, file string, line, col int, format string, args ...any) Diagnostic {
	return NewDiagnostic(code, SeverityWarning, file, line, col, fmt.Sprintf(format, args...))
}

// Position returns the file:line:column prefix of the diagnostic.
func (d Diagnostic) Position() string {
	switch {
	case d.File == "":
		return ""
	case d.Line == 0:
		return d.File
	default:
		return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
}

// String formats the diagnostic as "file:line:col: severity CODE: message".
func (d Diagnostic) String() string {
	pos := d.Position()
	if pos != "" {
		pos += ": "
	}
	return fmt.Sprintf("%s%s %s: %s", pos, d.Severity, d.Code, d.Message)
}

// Diagnostics is an ordered collection of diagnostics.
type Diagnostics []Diagnostic

// Sort orders diagnostics by file, line, column, code and message so that
// results never depend on completion order.
func (ds Diagnostics) Sort() {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(a.Code, b.Code),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// HasErrors reports whether any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	return slices.ContainsFunc(ds, func(d Diagnostic) bool { return d.Severity == SeverityError })
}

// WithFile returns a copy of ds with every diagnostic attributed to file.
func (ds Diagnostics) WithFile(file string) Diagnostics {
	out := make(Diagnostics, len(ds))
	for i, d := range ds {
		d.File = file
		out[i] = d
	}
	return out
}

// DiagnosticSummary counts diagnostics by severity.
type DiagnosticSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Summarize counts ds by severity.
func (ds Diagnostics) Summarize() DiagnosticSummary {
	var s DiagnosticSummary
	for _, d := range ds {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Infos++
		}
	}
	return s
}

// ByFile groups diagnostics by file, preserving order within each group.
// Diagnostics without a file are grouped under the empty string.
func (ds Diagnostics) ByFile() ([]string, map[string]Diagnostics) {
	groups := make(map[string]Diagnostics)
	var files []string
	for _, d := range ds {
		if _, ok := groups[d.File]; !ok {
			files = append(files, d.File)
		}
		groups[d.File] = append(groups[d.File], d)
	}
	slices.Sort(files)
	return files, groups
}
