package genomicarray

import (
	"fmt"
	"reflect"
	"time"
)

// Number is the set of element types a store can hold. Only fixed size
// types are allowed so that arrays encode with encoding/binary.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// dtypeOf returns the NumPy style type string ("<f8", "|u1", ...) of T.
func dtypeOf[T Number]() string {
	var zero T
	t := reflect.TypeOf(zero)
	size := int(t.Size())

	order := "<"
	if size == 1 {
		order = "|"
	}

	var basic string
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		basic = "i"
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		basic = "u"
	default:
		basic = "f"
	}
	return fmt.Sprintf("%s%s%d", order, basic, size)
}

func sizeOf[T Number]() int {
	var zero T
	return int(reflect.TypeOf(zero).Size())
}

// Shape is the extent of one chromosome array: position cells, strands and
// conditions.
type Shape struct {
	Rows       int `json:"rows"`
	Strands    int `json:"strands"`
	Conditions int `json:"conditions"`
}

// Len returns the number of elements.
func (s Shape) Len() int {
	return s.Rows * s.Strands * s.Conditions
}

// Block is a dense copy of a cell range across all strands and conditions,
// laid out row-major as (row, strand, condition).
type Block[T Number] struct {
	Shape Shape
	Data  []T
}

// At returns the value at (row, strand, condition).
func (b Block[T]) At(row, strand, condition int) T {
	return b.Data[(row*b.Shape.Strands+strand)*b.Shape.Conditions+condition]
}

// Metadata is the store-level description persisted next to the chunk
// files of a persistent store.
type Metadata struct {
	Format      string            `json:"format"`
	Version     string            `json:"version"`
	Created     time.Time         `json:"created"`
	CreatedBy   string            `json:"created_by"`
	Dtype       string            `json:"dtype"`
	Stranded    bool              `json:"stranded"`
	Conditions  []string          `json:"conditions"`
	Order       int               `json:"order"`
	Resolution  int               `json:"resolution"`
	Tags        []string          `json:"tags"`
	Compression CompressionConfig `json:"compression"`
	Chunks      []ChunkInfo       `json:"chunks"`
}

// ChunkInfo describes the chunk file of one chromosome.
type ChunkInfo struct {
	Path        string `json:"path"`
	Chromosome  string `json:"chromosome"`
	Length      int    `json:"length"`
	Shape       Shape  `json:"shape"`
	SizeBytes   int64  `json:"size_bytes"`
	Compression string `json:"compression"`
	Checksum    string `json:"checksum"`
}

// CompressionConfig describes compression settings
type CompressionConfig struct {
	Algorithm string `json:"algorithm"`
}

const (
	formatName    = "genomicarray"
	formatVersion = "1.0.0"
	createdBy     = "genomicarray-go"
)
