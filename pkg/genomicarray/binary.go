package genomicarray

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Binary format constants
const (
	ChunkMagic    uint32 = 0x43524147 // "GARC"
	ArchiveMagic  uint32 = 0x41524147 // "GARA"
	ArchiveEnd    uint32 = 0x21524147 // "GAR!"
	BinaryVersion uint16 = 0x0100     // v1.0
)

const chunkHeaderSize = 16

// Archive entry kinds
const (
	entryArray   uint8 = 1
	entryStrings uint8 = 2
	entryInt     uint8 = 3
)

// encodeChunk serializes one chromosome array: a 16-byte header (magic,
// version, flags, rows, strands, conditions) followed by the little-endian
// values. The whole chunk is then compressed.
func encodeChunk[T Number](g *grid[T], c *Compressor) ([]byte, error) {
	if err := checkShape(g.shape); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, chunkHeaderSize+len(g.data)*sizeOf[T]()))

	header := make([]byte, chunkHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], ChunkMagic)
	binary.LittleEndian.PutUint16(header[4:6], BinaryVersion)
	binary.LittleEndian.PutUint16(header[6:8], c.Flags())
	binary.LittleEndian.PutUint32(header[8:12], uint32(g.shape.Rows))
	binary.LittleEndian.PutUint16(header[12:14], uint16(g.shape.Strands))
	binary.LittleEndian.PutUint16(header[14:16], uint16(g.shape.Conditions))
	buf.Write(header)

	if err := binary.Write(buf, binary.LittleEndian, g.data); err != nil {
		return nil, fmt.Errorf("failed to encode values: %w", err)
	}

	return c.Compress(buf.Bytes()), nil
}

// maxConditions is the widest condition axis the chunk header can hold.
const maxConditions = math.MaxUint16

// checkShape rejects shapes whose dimensions overflow the chunk header.
func checkShape(s Shape) error {
	if int64(s.Rows) > math.MaxUint32 || s.Strands > math.MaxUint16 || s.Conditions > maxConditions {
		return fmt.Errorf("%w: array shape %v exceeds the chunk format limits", ErrInvalidConfig, s)
	}
	return nil
}

// decodeChunk is the inverse of encodeChunk. The returned grid has no
// chromosome length set.
func decodeChunk[T Number](data []byte, c *Compressor) (*grid[T], error) {
	raw, err := c.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if len(raw) < chunkHeaderSize {
		return nil, fmt.Errorf("%w: chunk too short (%d bytes)", ErrCorruptCache, len(raw))
	}
	if magic := binary.LittleEndian.Uint32(raw[0:4]); magic != ChunkMagic {
		return nil, fmt.Errorf("%w: bad chunk magic %#x", ErrCorruptCache, magic)
	}
	if version := binary.LittleEndian.Uint16(raw[4:6]); version != BinaryVersion {
		return nil, fmt.Errorf("%w: unsupported chunk version %#x", ErrCorruptCache, version)
	}

	shape := Shape{
		Rows:       int(binary.LittleEndian.Uint32(raw[8:12])),
		Strands:    int(binary.LittleEndian.Uint16(raw[12:14])),
		Conditions: int(binary.LittleEndian.Uint16(raw[14:16])),
	}
	payload := raw[chunkHeaderSize:]
	if want := shape.Len() * sizeOf[T](); len(payload) != want {
		return nil, fmt.Errorf("%w: chunk payload is %d bytes, want %d", ErrCorruptCache, len(payload), want)
	}

	g := &grid[T]{shape: shape, data: make([]T, shape.Len())}
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, g.data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	return g, nil
}

// archiveWriter appends length-prefixed fields.
type archiveWriter struct {
	buf bytes.Buffer
}

func (w *archiveWriter) put(v any) {
	// writes to a bytes.Buffer only fail for unsupported types
	if err := binary.Write(&w.buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

func (w *archiveWriter) putString16(s string) {
	w.put(uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *archiveWriter) entry(name string, kind uint8, payload []byte) {
	w.putString16(name)
	w.put(kind)
	w.put(uint64(len(payload)))
	w.buf.Write(payload)
}

func (w *archiveWriter) intEntry(name string, v int64) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, uint64(v))
	w.entry(name, entryInt, payload)
}

// encodeArchive serializes a whole store into a single file: header (magic,
// version, flags, dtype, entry count), one entry per setting and per
// chromosome, and a trailing end magic.
func encodeArchive[T Number](l layout, grids map[string]*grid[T], c *Compressor) ([]byte, error) {
	names := make([]string, 0, len(grids))
	for name := range grids {
		names = append(names, name)
	}
	sort.Strings(names)

	var w archiveWriter
	w.put(ArchiveMagic)
	w.put(BinaryVersion)
	w.put(c.Flags())
	dtype := dtypeOf[T]()
	w.put(uint8(len(dtype)))
	w.buf.WriteString(dtype)
	w.put(uint32(4 + len(names)))

	var conds archiveWriter
	conds.put(uint32(len(l.Conditions)))
	for _, name := range l.Conditions {
		conds.putString16(name)
	}
	w.entry("conditions", entryStrings, conds.buf.Bytes())
	w.intEntry("order", int64(l.Order))
	w.intEntry("resolution", int64(l.Resolution))
	stranded := int64(0)
	if l.Stranded {
		stranded = 1
	}
	w.intEntry("stranded", stranded)

	for _, name := range names {
		g := grids[name]
		chunk, err := encodeChunk(g, c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		payload := make([]byte, 8, 8+len(chunk))
		binary.LittleEndian.PutUint64(payload, uint64(g.length))
		w.entry(name, entryArray, append(payload, chunk...))
	}

	w.put(ArchiveEnd)
	return w.buf.Bytes(), nil
}

// archiveReader reads fields and turns short reads into ErrCorruptCache.
type archiveReader struct {
	r   *bytes.Reader
	err error
}

func (r *archiveReader) get(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.fail(err)
	}
}

func (r *archiveReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > r.r.Len() {
		r.fail(io.ErrUnexpectedEOF)
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(err)
		return nil
	}
	return b
}

func (r *archiveReader) string16() string {
	var n uint16
	r.get(&n)
	return string(r.bytes(int(n)))
}

func (r *archiveReader) fail(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: truncated archive", ErrCorruptCache)
	}
	r.err = err
}

// decodeArchive is the inverse of encodeArchive.
func decodeArchive[T Number](data []byte) (layout, map[string]*grid[T], error) {
	r := &archiveReader{r: bytes.NewReader(data)}

	var (
		magic   uint32
		version uint16
		flags   uint16
		dlen    uint8
		count   uint32
	)
	r.get(&magic)
	r.get(&version)
	r.get(&flags)
	r.get(&dlen)
	dtype := string(r.bytes(int(dlen)))
	r.get(&count)
	if r.err != nil {
		return layout{}, nil, r.err
	}
	if magic != ArchiveMagic {
		return layout{}, nil, fmt.Errorf("%w: bad archive magic %#x", ErrCorruptCache, magic)
	}
	if version != BinaryVersion {
		return layout{}, nil, fmt.Errorf("%w: unsupported archive version %#x", ErrCorruptCache, version)
	}
	if want := dtypeOf[T](); dtype != want {
		return layout{}, nil, fmt.Errorf("%w: archive holds %s, requested %s", ErrDtypeMismatch, dtype, want)
	}

	algorithm := "none"
	if flags == CompressionZstd {
		algorithm = "zstd"
	}
	c, err := NewCompressor(algorithm)
	if err != nil {
		return layout{}, nil, err
	}
	defer c.Close()

	l := layout{Lengths: make(map[string]int)}
	grids := make(map[string]*grid[T])
	for i := uint32(0); i < count; i++ {
		name := r.string16()
		var (
			kind uint8
			size uint64
		)
		r.get(&kind)
		r.get(&size)
		if r.err == nil && size > uint64(r.r.Len()) {
			r.fail(io.ErrUnexpectedEOF)
		}
		payload := r.bytes(int(size))
		if r.err != nil {
			return layout{}, nil, r.err
		}

		switch kind {
		case entryInt:
			if len(payload) != 8 {
				return layout{}, nil, fmt.Errorf("%w: bad %s entry", ErrCorruptCache, name)
			}
			v := int(int64(binary.LittleEndian.Uint64(payload)))
			switch name {
			case "order":
				l.Order = v
			case "resolution":
				l.Resolution = v
			case "stranded":
				l.Stranded = v != 0
			}
		case entryStrings:
			sr := &archiveReader{r: bytes.NewReader(payload)}
			var n uint32
			sr.get(&n)
			for j := uint32(0); j < n && sr.err == nil; j++ {
				l.Conditions = append(l.Conditions, sr.string16())
			}
			if sr.err != nil {
				return layout{}, nil, sr.err
			}
		case entryArray:
			if len(payload) < 8 {
				return layout{}, nil, fmt.Errorf("%w: bad array entry %s", ErrCorruptCache, name)
			}
			g, err := decodeChunk[T](payload[8:], c)
			if err != nil {
				return layout{}, nil, fmt.Errorf("failed to decode %s: %w", name, err)
			}
			g.length = int(binary.LittleEndian.Uint64(payload[:8]))
			grids[name] = g
			l.Lengths[name] = g.length
		default:
			return layout{}, nil, fmt.Errorf("%w: unknown entry kind %d", ErrCorruptCache, kind)
		}
	}

	var end uint32
	r.get(&end)
	if r.err != nil {
		return layout{}, nil, r.err
	}
	if end != ArchiveEnd {
		return layout{}, nil, fmt.Errorf("%w: missing end marker", ErrCorruptCache)
	}
	return l, grids, nil
}
