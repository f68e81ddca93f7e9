// Package genomicarray stores per-base numeric signal over a genome as
// dense arrays, one per chromosome, with an axis for strand and one for
// experimental condition. Two backends exist: a persistent store that is
// built once and read lazily from a cache directory, and an in-process
// store that can optionally be snapshotted to a single archive file.
package genomicarray

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
)

// Store is a genomic array. Only the backends in this package implement it.
type Store[T Number] interface {
	// Read returns a copy of the cells covering iv for one condition.
	Read(iv genomics.Interval, condition int) ([]T, error)
	// Write assigns value to the cells covering iv for one condition.
	Write(iv genomics.Interval, condition int, value T) error
	// Block returns the cells covering iv across every strand and condition.
	Block(iv genomics.Interval) (Block[T], error)

	Conditions() []string
	Resolution() int
	Order() int
	Stranded() bool
	Chromosomes() []string
	Shape(chrom string) (Shape, error)
	Kind() StorageKind
	Close() error

	isStore()
}

// Loader fills a freshly allocated store. It is called exactly once, before
// the store is returned to the caller, with the extra arguments passed to
// the constructor.
type Loader[T Number] func(store Store[T], args ...any) error

// grid is the dense array of one chromosome.
type grid[T Number] struct {
	length int
	shape  Shape
	data   []T
}

func rowsFor(length, resolution int) int {
	return (length+resolution-1)/resolution + 1
}

func shapeFor(length, resolution, strands, conditions int) Shape {
	return Shape{Rows: rowsFor(length, resolution), Strands: strands, Conditions: conditions}
}

func newGrid[T Number](length int, shape Shape) *grid[T] {
	return &grid[T]{length: length, shape: shape, data: make([]T, shape.Len())}
}

func (g *grid[T]) index(row, strand, condition int) int {
	return (row*g.shape.Strands+strand)*g.shape.Conditions + condition
}

// cells is a translated interval: rows [lo, hi) on one strand.
type cells struct {
	lo, hi int
	strand int
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// base holds the layout and the accessors shared by both backends. lookup
// returns the array of a known chromosome.
type base[T Number] struct {
	kind       StorageKind
	stranded   bool
	conditions []string
	resolution int
	order      int
	lengths    genomics.ChromLengths
	names      []string
	closed     bool

	lookup func(chrom string) (*grid[T], error)
}

func (b *base[T]) init(kind StorageKind, stranded bool, conditions []string, resolution, order int, lengths genomics.ChromLengths) {
	b.kind = kind
	b.stranded = stranded
	b.conditions = append([]string(nil), conditions...)
	b.resolution = resolution
	b.order = order
	b.lengths = make(genomics.ChromLengths, len(lengths))
	for name, length := range lengths {
		b.lengths[name] = length
	}
	b.names = b.lengths.Names()
}

func (b *base[T]) strands() int {
	if b.stranded {
		return 2
	}
	return 1
}

func (b *base[T]) translate(iv genomics.Interval, shape Shape) (cells, error) {
	if iv.End < iv.Start {
		return cells{}, fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
	}
	c := cells{
		lo: clamp(floorDiv(iv.Start, b.resolution), 0, shape.Rows),
		hi: clamp(floorDiv(iv.End, b.resolution), 0, shape.Rows),
	}
	if b.stranded && iv.Strand == genomics.StrandReverse {
		c.strand = 1
	}
	return c, nil
}

func (b *base[T]) resolveCells(iv genomics.Interval) (*grid[T], cells, error) {
	if b.closed {
		return nil, cells{}, ErrClosed
	}
	if _, ok := b.lengths[iv.Chrom]; !ok {
		return nil, cells{}, fmt.Errorf("%w: %s", ErrUnknownChromosome, iv.Chrom)
	}
	g, err := b.lookup(iv.Chrom)
	if err != nil {
		return nil, cells{}, err
	}
	c, err := b.translate(iv, g.shape)
	if err != nil {
		return nil, cells{}, err
	}
	return g, c, nil
}

func (b *base[T]) checkCondition(condition int) error {
	if condition < 0 || condition >= len(b.conditions) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidCondition, condition, len(b.conditions))
	}
	return nil
}

func (b *base[T]) Read(iv genomics.Interval, condition int) ([]T, error) {
	if err := b.checkCondition(condition); err != nil {
		return nil, err
	}
	g, c, err := b.resolveCells(iv)
	if err != nil {
		return nil, err
	}
	out := make([]T, c.hi-c.lo)
	for row := c.lo; row < c.hi; row++ {
		out[row-c.lo] = g.data[g.index(row, c.strand, condition)]
	}
	return out, nil
}

func (b *base[T]) write(iv genomics.Interval, condition int, value T) error {
	if err := b.checkCondition(condition); err != nil {
		return err
	}
	g, c, err := b.resolveCells(iv)
	if err != nil {
		return err
	}
	for row := c.lo; row < c.hi; row++ {
		g.data[g.index(row, c.strand, condition)] = value
	}
	return nil
}

func (b *base[T]) Block(iv genomics.Interval) (Block[T], error) {
	g, c, err := b.resolveCells(iv)
	if err != nil {
		return Block[T]{}, err
	}
	shape := Shape{Rows: c.hi - c.lo, Strands: g.shape.Strands, Conditions: g.shape.Conditions}
	data := make([]T, shape.Len())
	copy(data, g.data[g.index(c.lo, 0, 0):g.index(c.hi, 0, 0)])
	return Block[T]{Shape: shape, Data: data}, nil
}

func (b *base[T]) Conditions() []string {
	return append([]string(nil), b.conditions...)
}

func (b *base[T]) Resolution() int { return b.resolution }

func (b *base[T]) Order() int { return b.order }

func (b *base[T]) Stranded() bool { return b.stranded }

func (b *base[T]) Kind() StorageKind { return b.kind }

// Chromosomes returns the chromosome names in sorted order.
func (b *base[T]) Chromosomes() []string {
	return append([]string(nil), b.names...)
}

// Length returns the length in base pairs of chrom.
func (b *base[T]) Length(chrom string) (int, error) {
	length, ok := b.lengths[chrom]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChromosome, chrom)
	}
	return length, nil
}

func (b *base[T]) Shape(chrom string) (Shape, error) {
	length, err := b.Length(chrom)
	if err != nil {
		return Shape{}, err
	}
	return shapeFor(length, b.resolution, b.strands(), len(b.conditions)), nil
}

func (b *base[T]) isStore() {}

// checkShapes fails when any chromosome array could not be persisted.
func (b *base[T]) checkShapes() error {
	for _, name := range b.names {
		if err := checkShape(shapeFor(b.lengths[name], b.resolution, b.strands(), len(b.conditions))); err != nil {
			return fmt.Errorf("chromosome %s: %w", name, err)
		}
	}
	return nil
}

// allocate creates zeroed arrays for every chromosome.
func (b *base[T]) allocate() map[string]*grid[T] {
	grids := make(map[string]*grid[T], len(b.lengths))
	for name, length := range b.lengths {
		grids[name] = newGrid[T](length, shapeFor(length, b.resolution, b.strands(), len(b.conditions)))
	}
	return grids
}

func lookupIn[T Number](grids map[string]*grid[T]) func(string) (*grid[T], error) {
	return func(chrom string) (*grid[T], error) {
		g, ok := grids[chrom]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChromosome, chrom)
		}
		return g, nil
	}
}

// layout is the persisted part of a store's configuration.
type layout struct {
	Stranded   bool
	Conditions []string
	Resolution int
	Order      int
	Lengths    genomics.ChromLengths
}

// mismatches lists the fields in which persisted differs from requested.
// Chromosome lengths are compared only when requested carries any.
func (requested layout) mismatches(persisted layout) []string {
	var diffs []string
	if requested.Stranded != persisted.Stranded {
		diffs = append(diffs, "stranded")
	}
	if !slices.Equal(requested.Conditions, persisted.Conditions) {
		diffs = append(diffs, "conditions")
	}
	if requested.Resolution != persisted.Resolution {
		diffs = append(diffs, "resolution")
	}
	if requested.Order != persisted.Order {
		diffs = append(diffs, "order")
	}
	if len(requested.Lengths) > 0 && !maps.Equal(requested.Lengths, persisted.Lengths) {
		diffs = append(diffs, "chromosomes")
	}
	sort.Strings(diffs)
	return diffs
}
