// Package genomicindexer turns a list of genomic regions and a binning policy
// into a flat, randomly addressable table of bins.
package genomicindexer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
)

var (
	// ErrInvalidConfig is returned for a non-positive binsize or stepsize
	// and for a negative flank.
	ErrInvalidConfig = errors.New("invalid indexer configuration")
	// ErrIndexOutOfRange is returned by At for positions outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Indexer maps integer positions to genomic intervals.
//
// Each bin is stored column-wise: the chromosome, the start of the region it
// was cut from, its ordinal within that region, the region strand, and its
// length relative to offset+inregion*stepsize.
type Indexer struct {
	binsize  int
	stepsize int
	flank    int

	chroms   []string
	offsets  []int
	inregion []int
	strands  []genomics.Strand
	relEnd   []int
}

type options struct {
	flank            int
	fixedSizeBatches bool
}

// Option configures New.
type Option func(*options)

// WithFlank widens every returned interval by n base pairs on both sides.
func WithFlank(n int) Option {
	return func(o *options) { o.flank = n }
}

// WithFixedSizeBatches controls whether a trailing partial bin is dropped
// (true, the default) or kept as a shorter final bin of its region.
func WithFixedSizeBatches(fixed bool) Option {
	return func(o *options) { o.fixedSizeBatches = fixed }
}

// New builds an Indexer over regions.
func New(regions []genomics.Region, binsize, stepsize int, opts ...Option) (*Indexer, error) {
	o := options{fixedSizeBatches: true}
	for _, opt := range opts {
		opt(&o)
	}

	if binsize <= 0 {
		return nil, fmt.Errorf("%w: binsize must be positive, got %d", ErrInvalidConfig, binsize)
	}
	if stepsize <= 0 {
		return nil, fmt.Errorf("%w: stepsize must be positive, got %d", ErrInvalidConfig, stepsize)
	}
	if o.flank < 0 {
		return nil, fmt.Errorf("%w: flank must be non-negative, got %d", ErrInvalidConfig, o.flank)
	}

	g := &Indexer{
		binsize:  binsize,
		stepsize: stepsize,
		flank:    o.flank,
	}

	for _, reg := range regions {
		var val int
		if stepsize <= binsize {
			val = reg.End - reg.Start - binsize + stepsize
		} else {
			val = reg.End - reg.Start
		}
		if val <= 0 {
			continue
		}

		n := val / stepsize
		for i := 0; i < n; i++ {
			g.add(reg, i, binsize)
		}

		// keep the variable length fragment at the end of the region
		if !o.fixedSizeBatches && val%stepsize > 0 {
			g.add(reg, n, val-n*stepsize)
		}
	}

	return g, nil
}

// FromReader builds an Indexer from every record of rr.
func FromReader(rr genomics.RegionReader, binsize, stepsize int, opts ...Option) (*Indexer, error) {
	regions, err := genomics.ReadAllRegions(rr)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions: %w", err)
	}
	return New(regions, binsize, stepsize, opts...)
}

// FromBED builds an Indexer from a BED file.
func FromBED(path string, binsize, stepsize int, opts ...Option) (*Indexer, error) {
	bed, err := genomics.OpenBED(path)
	if err != nil {
		return nil, err
	}
	defer bed.Close()

	return FromReader(bed, binsize, stepsize, opts...)
}

func (g *Indexer) add(reg genomics.Region, inregion, relEnd int) {
	g.chroms = append(g.chroms, reg.Chrom)
	g.offsets = append(g.offsets, reg.Start)
	g.inregion = append(g.inregion, inregion)
	g.strands = append(g.strands, reg.Strand)
	g.relEnd = append(g.relEnd, relEnd)
}

// Len returns the number of bins.
func (g *Indexer) Len() int {
	return len(g.chroms)
}

// Binsize returns the bin size in base pairs.
func (g *Indexer) Binsize() int { return g.binsize }

// Stepsize returns the step size in base pairs.
func (g *Indexer) Stepsize() int { return g.stepsize }

// Flank returns the flank added to both sides of each interval.
func (g *Indexer) Flank() int { return g.flank }

// At returns the interval of bin i.
func (g *Indexer) At(i int) (genomics.Interval, error) {
	if i < 0 || i >= g.Len() {
		return genomics.Interval{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, g.Len())
	}

	start := g.offsets[i] + g.inregion[i]*g.stepsize
	length := g.relEnd[i]
	if length <= 0 {
		length = 1
	}
	end := start + length

	return genomics.Interval{
		Chrom:  g.chroms[i],
		Start:  start - g.flank,
		End:    end + g.flank,
		Strand: g.strands[i],
	}, nil
}

// IndicesByChromosome returns the bin positions whose chromosome is in
// include (every position when include is empty) and not in exclude.
// The result is sorted ascending.
func (g *Indexer) IndicesByChromosome(include, exclude []string) []int {
	inc := toSet(include)
	exc := toSet(exclude)

	idxs := make([]int, 0, g.Len())
	for i, chrom := range g.chroms {
		if len(inc) > 0 {
			if _, ok := inc[chrom]; !ok {
				continue
			}
		}
		if _, ok := exc[chrom]; ok {
			continue
		}
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Strings formats every bin as chr:start-end.
func (g *Indexer) Strings() []string {
	out := make([]string, g.Len())
	for i := range out {
		iv, _ := g.At(i)
		out[i] = iv.String()
	}
	return out
}

func (g *Indexer) String() string {
	return fmt.Sprintf("Indexer(<regions>, binsize=%d, stepsize=%d, flank=%d)",
		g.binsize, g.stepsize, g.flank)
}
