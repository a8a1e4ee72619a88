// Package detector chooses between human and machine output.
package detector

import (
	"os"

	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// OutputMode is how build progress and reports are presented.
type OutputMode int

const (
	// ModeAuto defers to DetectEnvironment.
	ModeAuto OutputMode = iota
	// ModePretty prints colored, grouped text.
	ModePretty
	// ModeJSON prints one JSON document per report and JSON log records.
	ModeJSON
)

// ErrUnknownOutputMode is returned for an --output value other than auto, pretty or json.
var ErrUnknownOutputMode = zerr.New("unknown output mode, expected auto, pretty or json")

// String returns the flag spelling of m.
func (m OutputMode) String() string {
	switch m {
	case ModePretty:
		return "pretty"
	case ModeJSON:
		return "json"
	default:
		return "auto"
	}
}

// DetectEnvironment returns ModePretty on an interactive terminal and ModeJSON
// when stdout is piped or CI is set.
func DetectEnvironment() OutputMode {
	return detect(term.IsTerminal(int(os.Stdout.Fd())), os.Getenv("CI")) //nolint:gosec // fd fits in int
}

func detect(isTTY bool, ci string) OutputMode {
	if !isTTY || ci == "true" || ci == "1" {
		return ModeJSON
	}
	return ModePretty
}

// ParseMode maps an --output flag value to a mode.
func ParseMode(flag string) (OutputMode, error) {
	switch flag {
	case "", "auto":
		return ModeAuto, nil
	case "pretty", "text":
		return ModePretty, nil
	case "json":
		return ModeJSON, nil
	default:
		return ModeAuto, zerr.With(ErrUnknownOutputMode, "output", flag)
	}
}

// ResolveMode applies the user's choice over the detected mode.
func ResolveMode(detected, requested OutputMode) OutputMode {
	if requested == ModeAuto {
		return detected
	}
	return requested
}
