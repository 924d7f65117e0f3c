package http

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decompress(t *testing.T, algorithm string, data []byte) []byte {
	t.Helper()

	switch algorithm {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer r.Close()

		out, err := io.ReadAll(r)
		require.NoError(t, err)

		return out
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer r.Close()

		out, err := io.ReadAll(r)
		require.NoError(t, err)

		return out
	case CompressionZstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer r.Close()

		out, err := io.ReadAll(r)
		require.NoError(t, err)

		return out
	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		require.NoError(t, err)

		return out
	default:
		t.Fatalf("unknown algorithm %s", algorithm)

		return nil
	}
}

func TestCompressor_RoundTrip(t *testing.T) {
	payload := []byte(`{"fraction":0.99,"value":1234}` + "\n")

	for _, algorithm := range []string{
		CompressionGzip, CompressionZstd, CompressionZlib, CompressionSnappy,
	} {
		c, err := NewCompressor(algorithm)
		require.NoError(t, err, algorithm)

		compressed, err := c.Compress(payload)
		require.NoError(t, err, algorithm)

		assert.Equal(t, payload, decompress(t, algorithm, compressed), algorithm)
		require.NoError(t, c.Close())
	}
}

func TestCompressor_None(t *testing.T) {
	c, err := NewCompressor(CompressionNone)
	require.NoError(t, err)

	payload := []byte("passthrough")
	out, err := c.Compress(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
	assert.Empty(t, c.ContentEncoding())
}

func TestCompressor_Unsupported(t *testing.T) {
	c, err := NewCompressor("brotli")
	require.NoError(t, err)

	_, err = c.Compress([]byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported compression algorithm")
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Enabled: true, Address: "http://localhost:9000"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	bad := Config{Enabled: true}
	bad.ApplyDefaults()
	require.Error(t, bad.Validate(), "address is required")

	bad.Address = "http://localhost:9000"
	bad.Compression = "lz77"
	require.Error(t, bad.Validate())
}
