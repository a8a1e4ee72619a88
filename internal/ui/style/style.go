// Package style holds the colors and glyphs shared by the logger and the
// build renderer.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Accent  = lipgloss.Color("#0EA5E9")
	Muted   = lipgloss.Color("#64748B")
	Success = lipgloss.Color("#16A34A")
	Failure = lipgloss.Color("#DC2626")
	Caution = lipgloss.Color("#D97706")
)

// Glyphs.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Cached  = "≡"
	Arrow   = "→"
	Bullet  = "•"
)
