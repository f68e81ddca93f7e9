package genomics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	testCases := []struct {
		input string
		want  Interval
	}{
		{"chr1:0-10", Interval{"chr1", 0, 10, StrandNone}},
		{"chr2:1,000-2,000", Interval{"chr2", 1000, 2000, StrandNone}},
		{"chrX:5-5:-", Interval{"chrX", 5, 5, StrandReverse}},
		{"chrM:3-9:+", Interval{"chrM", 3, 9, StrandForward}},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseInterval(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseIntervalInvalid(t *testing.T) {
	for _, input := range []string{
		"chr1",
		"chr1:10",
		":0-10",
		"chr1:a-10",
		"chr1:10-b",
		"chr1:20-10",
		"chr1:-5-10",
		"chr1:0-10:x",
		"chr1:0-10:+:extra",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseInterval(input)
			assert.True(t, errors.Is(err, ErrInvalidInterval), "got %v", err)
		})
	}
}

func TestIntervalString(t *testing.T) {
	iv := Interval{Chrom: "chr1", Start: 5, End: 10, Strand: StrandForward}
	assert.Equal(t, "chr1:5-10", iv.String())
	assert.Equal(t, 5, iv.Len())
	assert.Equal(t, "+", iv.Strand.String())
}

func TestParseStrand(t *testing.T) {
	for input, want := range map[string]Strand{
		"+": StrandForward,
		"-": StrandReverse,
		".": StrandNone,
		"":  StrandNone,
	} {
		got, err := ParseStrand(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrand("*")
	assert.Error(t, err)
}
