// Package output builds termenv outputs with the color rules used across the CLI.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// Profile detects the terminal's color support. NO_COLOR forces plain text.
func Profile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// ProfileANSI is Profile for log-oriented consumers such as CI, where
// detection is unreliable and basic ANSI is assumed.
func ProfileANSI() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// New returns an output on w using Profile. A nil w writes to stderr.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	return NewWithProfile(w, Profile, opts...)
}

// NewWithProfile returns an output on w whose profile comes from profileFn.
func NewWithProfile(w io.Writer, profileFn func() termenv.Profile, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	opts = append(opts, termenv.WithProfile(profileFn()), termenv.WithTTY(true))
	return termenv.NewOutput(w, opts...)
}
