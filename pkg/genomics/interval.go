// Package genomics contains the coordinate types shared by the indexer and
// the genomic array stores: strands, half-open intervals, region records and
// chromosome lengths.
package genomics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInterval is returned for malformed interval strings and records.
var ErrInvalidInterval = errors.New("invalid interval")

// Strand is the orientation of an interval.
type Strand byte

const (
	StrandForward Strand = '+'
	StrandReverse Strand = '-'
	StrandNone    Strand = '.'
)

// ParseStrand parses "+", "-" or ".". An empty string is treated as ".".
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return StrandForward, nil
	case "-":
		return StrandReverse, nil
	case ".", "":
		return StrandNone, nil
	}
	return StrandNone, fmt.Errorf("invalid strand %q (expected +, - or .)", s)
}

func (s Strand) String() string {
	return string(s)
}

// Interval is a zero-based, half-open genomic interval.
type Interval struct {
	Chrom  string
	Start  int
	End    int
	Strand Strand
}

// Len returns End - Start.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// String formats the interval as chr:start-end.
func (iv Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", iv.Chrom, iv.Start, iv.End)
}

// ParseInterval parses an interval string like "chr1:1000000-2000000".
// An optional strand suffix is accepted: "chr1:100-200:-".
func ParseInterval(s string) (Interval, error) {
	iv := Interval{Strand: StrandNone}

	// Split on ':'
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return iv, fmt.Errorf("%w: %s (expected chr:start-end)", ErrInvalidInterval, s)
	}
	if parts[0] == "" {
		return iv, fmt.Errorf("%w: %s (missing chromosome)", ErrInvalidInterval, s)
	}
	iv.Chrom = parts[0]

	// Split on '-'
	posParts := strings.Split(parts[1], "-")
	if len(posParts) != 2 {
		return iv, fmt.Errorf("%w: %s (expected chr:start-end)", ErrInvalidInterval, s)
	}

	var err error
	iv.Start, err = strconv.Atoi(strings.ReplaceAll(posParts[0], ",", ""))
	if err != nil {
		return iv, fmt.Errorf("%w: invalid start position: %v", ErrInvalidInterval, err)
	}
	iv.End, err = strconv.Atoi(strings.ReplaceAll(posParts[1], ",", ""))
	if err != nil {
		return iv, fmt.Errorf("%w: invalid end position: %v", ErrInvalidInterval, err)
	}
	if iv.Start < 0 || iv.End < iv.Start {
		return iv, fmt.Errorf("%w: %s (start must be >= 0 and <= end)", ErrInvalidInterval, s)
	}

	if len(parts) == 3 {
		iv.Strand, err = ParseStrand(parts[2])
		if err != nil {
			return iv, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
		}
	}

	return iv, nil
}
