package transform

// Exported for testing.
var (
	CleanJSXText   = cleanJSXText
	FormatNumber   = formatNumber
	ShortName      = shortName
	ModuleBaseName = moduleBaseName
	NeedsSemicolon = needsSemicolon
	DecodeJSString = decodeJSString
)
