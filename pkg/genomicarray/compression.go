package genomicarray

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression flags
const (
	CompressionNone uint16 = 0x0
	CompressionZstd uint16 = 0x1
)

// Compressor handles chunk compression
type Compressor struct {
	algorithm string
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewCompressor creates a compressor for "zstd" or "none".
func NewCompressor(algorithm string) (*Compressor, error) {
	c := &Compressor{algorithm: algorithm}
	switch algorithm {
	case "none":
		return c, nil
	case "zstd":
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrInvalidConfig, algorithm)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	c.encoder = encoder
	c.decoder = decoder
	return c, nil
}

// Algorithm returns the compression name written to metadata.
func (c *Compressor) Algorithm() string {
	return c.algorithm
}

// Flags returns the header flag for the algorithm.
func (c *Compressor) Flags() uint16 {
	if c.encoder != nil {
		return CompressionZstd
	}
	return CompressionNone
}

// Compress compresses data
func (c *Compressor) Compress(data []byte) []byte {
	if c.encoder == nil {
		return data
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress decompresses data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if c.decoder == nil {
		return data, nil
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// Close closes the compressor
func (c *Compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
