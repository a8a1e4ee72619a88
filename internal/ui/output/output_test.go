package output_test

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/synapse/internal/ui/output"
)

func TestProfile_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, output.Profile())
	assert.Equal(t, termenv.Ascii, output.ProfileANSI())
}

func TestProfileANSI_Default(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.Equal(t, termenv.ANSI, output.ProfileANSI())
}

func TestNew_WritesThrough(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := output.New(&buf)

	styled := out.String("built").Bold().String()
	_, _ = out.WriteString(styled)

	assert.Equal(t, "built", buf.String())
}

func TestNewWithProfile_NilWriter(t *testing.T) {
	assert.NotNil(t, output.NewWithProfile(nil, output.ProfileANSI))
}
