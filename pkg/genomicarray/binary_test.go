package genomicarray

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGrid() *grid[float32] {
	g := newGrid[float32](5, shapeFor(5, 2, 2, 3))
	for i := range g.data {
		g.data[i] = float32(i) / 2
	}
	return g
}

func TestChunkRoundTrip(t *testing.T) {
	for _, algorithm := range []string{"zstd", "none"} {
		t.Run(algorithm, func(t *testing.T) {
			c, err := NewCompressor(algorithm)
			require.NoError(t, err)
			defer c.Close()

			g := sampleGrid()
			data, err := encodeChunk(g, c)
			require.NoError(t, err)

			got, err := decodeChunk[float32](data, c)
			require.NoError(t, err)
			assert.Equal(t, g.shape, got.shape)
			assert.Equal(t, g.data, got.data)
		})
	}
}

func TestChunkHeader(t *testing.T) {
	c, err := NewCompressor("none")
	require.NoError(t, err)

	data, err := encodeChunk(sampleGrid(), c)
	require.NoError(t, err)
	require.Len(t, data, chunkHeaderSize+4*2*3*4)

	assert.Equal(t, []byte("GARC"), data[0:4])
	assert.Equal(t, BinaryVersion, binary.LittleEndian.Uint16(data[4:6]))
	assert.Equal(t, CompressionNone, binary.LittleEndian.Uint16(data[6:8]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[12:14]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[14:16]))
}

func TestEncodeChunkRejectsOversizedShape(t *testing.T) {
	c, err := NewCompressor("none")
	require.NoError(t, err)

	rows := int64(math.MaxUint32) + 1
	for _, shape := range []Shape{
		{Rows: 1, Strands: 1, Conditions: maxConditions + 1},
		{Rows: 1, Strands: math.MaxUint16 + 1, Conditions: 1},
		{Rows: int(rows), Strands: 1, Conditions: 1},
	} {
		_, err := encodeChunk(&grid[uint8]{shape: shape}, c)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "shape %v: %v", shape, err)
	}
	assert.NoError(t, checkShape(Shape{Rows: int(rows - 1), Strands: 2, Conditions: maxConditions}))
}

func TestDecodeChunkErrors(t *testing.T) {
	c, err := NewCompressor("none")
	require.NoError(t, err)
	data, err := encodeChunk(sampleGrid(), c)
	require.NoError(t, err)

	badMagic := append([]byte("XXXX"), data[4:]...)
	testCases := map[string][]byte{
		"short":       data[:8],
		"bad magic":   badMagic,
		"short body":  data[:len(data)-1],
		"wrong dtype": data,
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			var err error
			if name == "wrong dtype" {
				_, err = decodeChunk[float64](input, c)
			} else {
				_, err = decodeChunk[float32](input, c)
			}
			assert.True(t, errors.Is(err, ErrCorruptCache), "got %v", err)
		})
	}

	zstd, err := NewCompressor("zstd")
	require.NoError(t, err)
	_, err = decodeChunk[float32]([]byte("not zstd"), zstd)
	assert.True(t, errors.Is(err, ErrCorruptCache), "got %v", err)
}

func TestArchiveRoundTrip(t *testing.T) {
	c, err := NewCompressor("zstd")
	require.NoError(t, err)

	l := layout{Stranded: true, Conditions: []string{"a", "b", "c"}, Resolution: 2, Order: 3}
	grids := map[string]*grid[float32]{"chrM": sampleGrid(), "chr1": sampleGrid()}

	data, err := encodeArchive(l, grids, c)
	require.NoError(t, err)
	assert.Equal(t, []byte("GARA"), data[0:4])
	assert.Equal(t, []byte("GAR!"), data[len(data)-4:])

	got, gotGrids, err := decodeArchive[float32](data)
	require.NoError(t, err)
	assert.Equal(t, l.Conditions, got.Conditions)
	assert.Equal(t, 2, got.Resolution)
	assert.Equal(t, 3, got.Order)
	assert.True(t, got.Stranded)
	assert.Equal(t, map[string]int{"chrM": 5, "chr1": 5}, map[string]int(got.Lengths))
	require.Len(t, gotGrids, 2)
	assert.Equal(t, grids["chrM"].data, gotGrids["chrM"].data)
	assert.Equal(t, 5, gotGrids["chr1"].length)

	_, _, err = decodeArchive[int8](data)
	assert.True(t, errors.Is(err, ErrDtypeMismatch), "got %v", err)
}
