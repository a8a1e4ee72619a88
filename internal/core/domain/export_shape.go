package domain

import (
	"slices"
	"strconv"
	"strings"
)

// ExportKind classifies one exported binding.
type ExportKind uint8

const (
	// ExportUnknown is a binding whose kind could not be determined.
	ExportUnknown ExportKind = iota
	// ExportConst is a const binding.
	ExportConst
	// ExportMutable is a let or var binding, whose value may change after import.
	ExportMutable
	// ExportFunction is a function declaration.
	ExportFunction
	// ExportClass is a class declaration.
	ExportClass
	// ExportEnum is a regular enum, lowered to an object.
	ExportEnum
	// ExportConstEnum is a const enum; importers may inline its members.
	ExportConstEnum
	// ExportNamespace is a namespace object, either a TS namespace or `export * as ns`.
	ExportNamespace
	// ExportReExport is a binding forwarded from another module.
	ExportReExport
	// ExportType is a type-only binding with no runtime value.
	ExportType
)

var exportKindNames = [...]string{
	ExportUnknown:   "unknown",
	ExportConst:     "const",
	ExportMutable:   "mutable",
	ExportFunction:  "function",
	ExportClass:     "class",
	ExportEnum:      "enum",
	ExportConstEnum: "const-enum",
	ExportNamespace: "namespace",
	ExportReExport:  "re-export",
	ExportType:      "type",
}

// String returns the name of the kind.
func (k ExportKind) String() string {
	if int(k) < len(exportKindNames) {
		return exportKindNames[k]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k ExportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ExportKind) UnmarshalText(text []byte) error {
	for i, n := range exportKindNames {
		if n == string(text) {
			*k = ExportKind(i)
			return nil
		}
	}
	*k = ExportUnknown
	return nil
}

// IsStableValue reports whether an importer may bind the value once, by
// destructuring, instead of reading it through the module object on each use.
func (k ExportKind) IsStableValue() bool {
	switch k {
	case ExportConst, ExportFunction, ExportClass, ExportEnum, ExportConstEnum:
		return true
	default:
		return false
	}
}

// ExportBinding is one named export of a module.
type ExportBinding struct {
	Name string     `json:"name"`
	Kind ExportKind `json:"kind"`
	// Members holds the inlinable literal text of each const enum member.
	Members map[string]string `json:"members,omitempty"`
}

// ExportShape is the set of bindings a module exposes to its importers.
type ExportShape struct {
	// Exports is sorted by name and excludes "default".
	Exports    []ExportBinding `json:"exports,omitempty"`
	HasDefault bool            `json:"has_default,omitempty"`
	// OpenStar is set when an `export * from` target had no known shape, so
	// the module may export names not listed here.
	OpenStar bool `json:"open_star,omitempty"`
	// Dynamic marks a shape that is not known at all.
	Dynamic bool `json:"dynamic,omitempty"`
}

// DynamicShape returns the shape used when a dependency failed or closes a cycle.
func DynamicShape() *ExportShape {
	return &ExportShape{Dynamic: true}
}

// Add inserts or replaces a binding, keeping Exports sorted.
func (s *ExportShape) Add(b ExportBinding) {
	if b.Name == "default" {
		s.HasDefault = true
		return
	}
	i, found := slices.BinarySearchFunc(s.Exports, b.Name, func(e ExportBinding, name string) int {
		return strings.Compare(e.Name, name)
	})
	if found {
		s.Exports[i] = b
		return
	}
	s.Exports = slices.Insert(s.Exports, i, b)
}

// Lookup returns the binding called name.
func (s *ExportShape) Lookup(name string) (ExportBinding, bool) {
	if s == nil {
		return ExportBinding{}, false
	}
	i, found := slices.BinarySearchFunc(s.Exports, name, func(e ExportBinding, n string) int {
		return strings.Compare(e.Name, n)
	})
	if !found {
		return ExportBinding{}, false
	}
	return s.Exports[i], true
}

// Known reports whether the shape lists every export of the module.
func (s *ExportShape) Known() bool {
	return s != nil && !s.Dynamic && !s.OpenStar
}

// Canonical returns a deterministic text form used when fingerprinting dependents.
func (s *ExportShape) Canonical() string {
	if s == nil || s.Dynamic {
		return "dynamic"
	}
	var b strings.Builder
	if s.HasDefault {
		b.WriteString("default;")
	}
	if s.OpenStar {
		b.WriteString("*;")
	}
	for _, e := range s.Exports {
		b.WriteString(strconv.Quote(e.Name))
		b.WriteByte(':')
		b.WriteString(e.Kind.String())
		if len(e.Members) > 0 {
			keys := make([]string, 0, len(e.Members))
			for k := range e.Members {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			b.WriteByte('{')
			for _, k := range keys {
				b.WriteString(strconv.Quote(k))
				b.WriteByte('=')
				b.WriteString(e.Members[k])
				b.WriteByte(',')
			}
			b.WriteByte('}')
		}
		b.WriteByte(';')
	}
	return b.String()
}
