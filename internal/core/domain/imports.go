package domain

// ShapeStatus explains where the export shape of an import came from.
type ShapeStatus uint8

const (
	// ShapeKnown means the dependency compiled and its shape is attached.
	ShapeKnown ShapeStatus = iota
	// ShapeNotNeeded means the module format never consults shapes.
	ShapeNotNeeded
	// ShapeFailed means the dependency failed, so its shape is dynamic.
	ShapeFailed
	// ShapeCyclic means the edge closes a cycle and may observe a partial module.
	ShapeCyclic
	// ShapeExternal means the specifier names a package outside the batch.
	ShapeExternal
	// ShapeUnresolved means the specifier could not be resolved.
	ShapeUnresolved
	// ShapeAsset means the specifier points at a non-source file.
	ShapeAsset
)

// ResolvedImport is everything the module rewriter knows about one specifier.
type ResolvedImport struct {
	Specifier string
	Kind      ResolutionKind
	Status    ShapeStatus
	// Shape is nil unless Status is ShapeKnown.
	Shape *ExportShape
}

// ImportShapes maps a unit's specifiers to what they resolved to.
type ImportShapes map[string]ResolvedImport

// Lookup returns the entry for specifier, or an unresolved entry when absent.
func (s ImportShapes) Lookup(specifier string) ResolvedImport {
	if r, ok := s[specifier]; ok {
		return r
	}
	return ResolvedImport{Specifier: specifier, Kind: ResolvedUnresolved, Status: ShapeUnresolved}
}
