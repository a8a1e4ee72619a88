package sourcemap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/engine/sourcemap"
)

func TestEncode_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		segs []sourcemap.Segment
		want string
	}{
		{
			name: "origin",
			segs: []sourcemap.Segment{{Name: -1}},
			want: "AAAA",
		},
		{
			name: "second line and negative delta",
			segs: []sourcemap.Segment{
				{GenLine: 0, GenCol: 0, SrcLine: 1, SrcCol: 4, Name: -1},
				{GenLine: 1, GenCol: 2, SrcLine: 1, SrcCol: 0, Name: -1},
			},
			want: "AACI;EAAJ",
		},
		{
			name: "named and large values",
			segs: []sourcemap.Segment{
				{GenLine: 0, GenCol: 16, SrcLine: 0, SrcCol: 0, Name: 0},
			},
			want: "gBAAAA",
		},
		{
			name: "empty lines",
			segs: []sourcemap.Segment{{GenLine: 2, Name: -1}},
			want: ";;AAAA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourcemap.Encode(tt.segs))
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	b := sourcemap.NewBuilder()
	b.Add(0, 0, 0, 0)
	b.AddNamed(0, 6, 0, 13, "value")
	b.Add(2, 4, 5, 1)
	b.AddNamed(2, 40, 9, 120, "value")
	b.Add(3, 0, 1, 0)

	m := b.Build()
	assert.Equal(t, 3, m.Version)
	assert.Equal(t, []string{"value"}, m.Names)

	segs, err := sourcemap.Decode(m.Mappings)
	require.NoError(t, err)
	assert.Equal(t, []sourcemap.Segment{
		{GenLine: 0, GenCol: 0, SrcLine: 0, SrcCol: 0, Name: -1},
		{GenLine: 0, GenCol: 6, SrcLine: 0, SrcCol: 13, Name: 0},
		{GenLine: 2, GenCol: 4, SrcLine: 5, SrcCol: 1, Name: -1},
		{GenLine: 2, GenCol: 40, SrcLine: 9, SrcCol: 120, Name: 0},
		{GenLine: 3, GenCol: 0, SrcLine: 1, SrcCol: 0, Name: -1},
	}, segs)
}

func TestBuilder_FirstMappingAtPositionWins(t *testing.T) {
	b := sourcemap.NewBuilder()
	b.Add(0, 0, 3, 3)
	b.Add(0, 0, 9, 9)
	b.Add(0, 5, 3, 3) // same origin on the same line adds nothing
	assert.Equal(t, 1, b.Len())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := sourcemap.Decode("AA!A")
	require.Error(t, err)
	_, err = sourcemap.Decode("g")
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	segs := []sourcemap.Segment{
		{GenLine: 0, GenCol: 0, SrcLine: 0, SrcCol: 0, Name: -1},
		{GenLine: 0, GenCol: 10, SrcLine: 0, SrcCol: 20, Name: -1},
	}
	s, ok := sourcemap.Lookup(segs, 0, 12)
	require.True(t, ok)
	assert.Equal(t, 20, s.SrcCol)
	_, ok = sourcemap.Lookup(segs, 1, 0)
	assert.False(t, ok)
}
