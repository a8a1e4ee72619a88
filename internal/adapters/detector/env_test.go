package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/detector"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		isTTY bool
		ci    string
		want  detector.OutputMode
	}{
		{name: "terminal", isTTY: true, want: detector.ModePretty},
		{name: "terminal in CI", isTTY: true, ci: "true", want: detector.ModeJSON},
		{name: "terminal with CI=1", isTTY: true, ci: "1", want: detector.ModeJSON},
		{name: "terminal with CI=false", isTTY: true, ci: "false", want: detector.ModePretty},
		{name: "pipe", isTTY: false, want: detector.ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.Detect(tt.isTTY, tt.ci))
		})
	}
}

func TestParseMode(t *testing.T) {
	for flag, want := range map[string]detector.OutputMode{
		"":       detector.ModeAuto,
		"auto":   detector.ModeAuto,
		"pretty": detector.ModePretty,
		"text":   detector.ModePretty,
		"json":   detector.ModeJSON,
	} {
		got, err := detector.ParseMode(flag)
		require.NoError(t, err, flag)
		assert.Equal(t, want, got, flag)
	}

	_, err := detector.ParseMode("tui")
	assert.ErrorContains(t, err, detector.ErrUnknownOutputMode.Error())
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, detector.ModeJSON, detector.ResolveMode(detector.ModeJSON, detector.ModeAuto))
	assert.Equal(t, detector.ModePretty, detector.ResolveMode(detector.ModeJSON, detector.ModePretty))
	assert.Equal(t, detector.ModeJSON, detector.ResolveMode(detector.ModePretty, detector.ModeJSON))
}

func TestOutputMode_String(t *testing.T) {
	assert.Equal(t, "auto", detector.ModeAuto.String())
	assert.Equal(t, "pretty", detector.ModePretty.String())
	assert.Equal(t, "json", detector.ModeJSON.String())
}
