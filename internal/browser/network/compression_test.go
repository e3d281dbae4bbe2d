// browser/network/compression_test.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = "<html><body><p>compressed page body</p></body></html>"

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func brotlied(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	return buf.Bytes()
}

func zlibbed(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func flated(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func responseWith(encoding string, body []byte) *http.Response {
	header := make(http.Header)
	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	return &http.Response{
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func TestDecompressResponse(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		body     func(t *testing.T) []byte
	}{
		{"gzip", "gzip", func(t *testing.T) []byte { return gzipped(t, samplePayload) }},
		{"brotli", "br", func(t *testing.T) []byte { return brotlied(t, samplePayload) }},
		{"deflate zlib-wrapped", "deflate", func(t *testing.T) []byte { return zlibbed(t, samplePayload) }},
		{"deflate raw", "deflate", func(t *testing.T) []byte { return flated(t, samplePayload) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := responseWith(tt.encoding, tt.body(t))
			require.NoError(t, DecompressResponse(resp))

			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())

			assert.Equal(t, samplePayload, string(got))
			assert.True(t, resp.Uncompressed)
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			assert.EqualValues(t, -1, resp.ContentLength)
		})
	}
}

func TestDecompressResponseLayered(t *testing.T) {
	// Applied deflate first, then gzip; decode must peel gzip first.
	inner := flated(t, samplePayload)
	outer := gzipped(t, string(inner))

	t.Run("comma-joined header", func(t *testing.T) {
		resp := responseWith("deflate, gzip", outer)
		require.NoError(t, DecompressResponse(resp))
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, samplePayload, string(got))
	})
	t.Run("repeated header lines", func(t *testing.T) {
		resp := responseWith("deflate", outer)
		resp.Header.Add("Content-Encoding", "gzip")
		require.NoError(t, DecompressResponse(resp))
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, samplePayload, string(got))
	})
}

func TestDecompressResponsePassthrough(t *testing.T) {
	t.Run("no encoding header", func(t *testing.T) {
		resp := responseWith("", []byte(samplePayload))
		require.NoError(t, DecompressResponse(resp))
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, samplePayload, string(got))
		assert.False(t, resp.Uncompressed)
	})
	t.Run("identity", func(t *testing.T) {
		resp := responseWith("identity", []byte(samplePayload))
		require.NoError(t, DecompressResponse(resp))
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, samplePayload, string(got))
	})
	t.Run("nil response", func(t *testing.T) {
		require.NoError(t, DecompressResponse(nil))
	})
}

func TestDecompressResponseErrors(t *testing.T) {
	t.Run("unsupported encoding", func(t *testing.T) {
		resp := responseWith("zstd", []byte("whatever"))
		assert.Error(t, DecompressResponse(resp))
	})
	t.Run("corrupt gzip header", func(t *testing.T) {
		resp := responseWith("gzip", []byte("not a gzip stream"))
		assert.Error(t, DecompressResponse(resp))
	})
}

func TestPooledReadersAreReusable(t *testing.T) {
	// Sequential decodes must survive pool round trips.
	for i := 0; i < 3; i++ {
		resp := responseWith("gzip", gzipped(t, samplePayload))
		require.NoError(t, DecompressResponse(resp))
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, samplePayload, string(got))

		resp = responseWith("br", brotlied(t, samplePayload))
		require.NoError(t, DecompressResponse(resp))
		got, err = io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, samplePayload, string(got))
	}
}
