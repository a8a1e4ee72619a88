package domain

import (
	"path/filepath"
	"strings"
)

// Language is the syntactic variant of a source file.
type Language uint8

const (
	// LangUnknown marks a file the compiler does not handle.
	LangUnknown Language = iota
	// LangTypeScript is a .ts/.mts/.cts file.
	LangTypeScript
	// LangTSX is a .tsx file.
	LangTSX
	// LangJavaScript is a .js/.mjs/.cjs file.
	LangJavaScript
	// LangJSX is a .jsx file.
	LangJSX
)

// String returns the lowercase name of the language.
func (l Language) String() string {
	switch l {
	case LangTypeScript:
		return "typescript"
	case LangTSX:
		return "tsx"
	case LangJavaScript:
		return "javascript"
	case LangJSX:
		return "jsx"
	default:
		return "unknown"
	}
}

// HasJSX reports whether the language admits JSX syntax.
func (l Language) HasJSX() bool {
	return l == LangTSX || l == LangJSX
}

// IsTypeScript reports whether the language carries TypeScript syntax.
func (l Language) IsTypeScript() bool {
	return l == LangTypeScript || l == LangTSX
}

// SourceExtensions lists the extensions tried, in order, during module resolution.
var SourceExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// DetectLanguage maps a file path to its language by extension.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		if strings.HasSuffix(strings.ToLower(path), ".d.ts") {
			return LangUnknown
		}
		return LangTypeScript
	case ".tsx":
		return LangTSX
	case ".js", ".mjs", ".cjs":
		return LangJavaScript
	case ".jsx":
		return LangJSX
	default:
		return LangUnknown
	}
}

// ImportKind classifies how a specifier appears in the source.
type ImportKind uint8

const (
	// ImportStatic is an `import ... from` statement.
	ImportStatic ImportKind = iota
	// ImportReExport is an `export ... from` statement.
	ImportReExport
	// ImportRequire is a `require(...)` call or `import x = require(...)`.
	ImportRequire
	// ImportDynamic is an `import(...)` expression.
	ImportDynamic
)

// Import is one raw, unresolved module specifier found in a source file.
type Import struct {
	Specifier string
	Kind      ImportKind
	// TypeOnly marks `import type` and `export type` forms, which never order.
	TypeOnly bool
	Line     int
	Column   int
}

// SourceUnit is one input file. Its content is owned at read time and never mutated.
type SourceUnit struct {
	Path     string
	Content  []byte
	Language Language
	Imports  []Import
}

// NewSourceUnit creates a SourceUnit for the file at path.
func NewSourceUnit(path string, content []byte, imports []Import) *SourceUnit {
	return &SourceUnit{
		Path:     path,
		Content:  content,
		Language: DetectLanguage(path),
		Imports:  imports,
	}
}
