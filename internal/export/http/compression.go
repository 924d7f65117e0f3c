package http

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Supported compression algorithms.
const (
	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionZlib   = "zlib"
	CompressionSnappy = "snappy"
)

// Compressor compresses outgoing payloads with a fixed algorithm.
type Compressor struct {
	algorithm string

	// zstd encoders are expensive, so one is created up front and
	// reused for every payload.
	encoder *zstd.Encoder
}

// NewCompressor creates a Compressor for the given algorithm.
func NewCompressor(algorithm string) (*Compressor, error) {
	c := &Compressor{algorithm: algorithm}

	if algorithm == CompressionZstd {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}

		c.encoder = encoder
	}

	return c, nil
}

// Compress returns data compressed with the configured algorithm.
// With CompressionNone the input is returned as is.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		return compressWriter(data, func(w io.Writer) io.WriteCloser {
			return gzip.NewWriter(w)
		})
	case CompressionZlib:
		return compressWriter(data, func(w io.Writer) io.WriteCloser {
			return zlib.NewWriter(w)
		})
	case CompressionZstd:
		return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// ContentEncoding returns the Content-Encoding header value for the
// configured algorithm, or "" when no header should be set.
func (c *Compressor) ContentEncoding() string {
	switch c.algorithm {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionZlib:
		return "deflate"
	case CompressionSnappy:
		return "snappy"
	default:
		return ""
	}
}

// Close releases the zstd encoder, if any.
func (c *Compressor) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}

	return nil
}

func compressWriter(data []byte, newWriter func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer

	w := newWriter(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress close: %w", err)
	}

	return buf.Bytes(), nil
}
