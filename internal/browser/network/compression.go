// browser/network/compression.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// acceptEncoding advertises every codec DecompressResponse can unwrap.
const acceptEncoding = "br, gzip, deflate"

// Pooled decompression readers; a page fetch churns through one per hop.
var (
	gzipReaders = sync.Pool{
		New: func() any { return new(gzip.Reader) },
	}
	brotliReaders = sync.Pool{
		New: func() any { return brotli.NewReader(nil) },
	}
)

// Reset target for pooled readers so they drop their reference to the
// response body while idle. gzip.Reader.Reset(nil) can panic; an empty
// reader just yields io.EOF.
var drainedSource = strings.NewReader("")

func leaseGzipReader(r io.Reader) (*gzip.Reader, error) {
	zr := gzipReaders.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		gzipReaders.Put(zr)
		return nil, err
	}
	return zr, nil
}

func releaseGzipReader(zr *gzip.Reader) {
	_ = zr.Reset(drainedSource)
	gzipReaders.Put(zr)
}

func leaseBrotliReader(r io.Reader) (*brotli.Reader, error) {
	br := brotliReaders.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliReaders.Put(br)
		return nil, err
	}
	return br, nil
}

func releaseBrotliReader(br *brotli.Reader) {
	_ = br.Reset(drainedSource)
	brotliReaders.Put(br)
}

// DecodingTransport is an http.RoundTripper that negotiates compression on
// the way out and transparently unwraps Content-Encoding on the way back.
// The wrapped transport must have its own gzip handling disabled.
type DecodingTransport struct {
	// Base performs the actual round trip; nil means http.DefaultTransport.
	Base http.RoundTripper
}

func (dt *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	base := dt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		// The body stream may be partially consumed; the response is junk.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return resp, nil
}

// CloseIdleConnections forwards to the base transport so
// http.Client.CloseIdleConnections reaches the connection pool.
func (dt *DecodingTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	base := dt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if ci, ok := base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// decodedBody closes the decompression reader, hands any pooled reader
// back, and closes the wire body underneath.
type decodedBody struct {
	io.ReadCloser
	wire    io.ReadCloser
	release func()
}

func (b *decodedBody) Close() error {
	if b.wire == nil {
		return nil
	}
	// Close before release: once back in the pool the reader may be leased
	// by another response.
	err := b.ReadCloser.Close()
	if b.release != nil {
		b.release()
		b.release = nil
	}
	wireErr := b.wire.Close()
	b.wire = nil
	return errors.Join(err, wireErr)
}

// DecompressResponse wraps resp.Body so reads yield the decoded payload.
// Layered encodings are unwrapped in reverse of the order they were
// applied. Supported: gzip, br, deflate (zlib-wrapped or raw), identity.
// On success the Content-Encoding and Content-Length headers are dropped
// and resp.Uncompressed is set. On error the body may be partially read;
// the caller must close and discard the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	// Both repeated header lines and the comma-joined form list layers in
	// application order.
	var layers []string
	for _, value := range resp.Header.Values("Content-Encoding") {
		for _, token := range strings.Split(value, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(token)))
		}
	}
	if len(layers) == 0 {
		return nil
	}

	for i := len(layers) - 1; i >= 0; i-- {
		encoding := layers[i]

		var (
			reader  io.ReadCloser
			release func()
		)
		switch encoding {
		case "gzip":
			zr, err := leaseGzipReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip layer: %w", err)
			}
			reader = zr
			release = func() { releaseGzipReader(zr) }
		case "br":
			br, err := leaseBrotliReader(resp.Body)
			if err != nil {
				return fmt.Errorf("brotli layer: %w", err)
			}
			// brotli.Reader has no Close.
			reader = io.NopCloser(br)
			release = func() { releaseBrotliReader(br) }
		case "deflate":
			dr, err := newDeflateReader(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate layer: %w", err)
			}
			reader = dr
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported content-encoding %q", encoding)
		}

		resp.Body = &decodedBody{
			ReadCloser: reader,
			wire:       resp.Body,
			release:    release,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// replayReader buffers what has been read so a failed decoder probe can be
// retried from the start of the stream.
type replayReader struct {
	r      io.Reader
	buf    *bytes.Buffer
	source io.Reader
}

func newReplayReader(r io.Reader) *replayReader {
	buf := bytes.NewBuffer(make([]byte, 0, 128))
	return &replayReader{
		r:      io.TeeReader(r, buf),
		buf:    buf,
		source: r,
	}
}

func (rr *replayReader) Read(p []byte) (int, error) {
	return rr.r.Read(p)
}

func (rr *replayReader) replay() {
	rr.r = io.MultiReader(bytes.NewReader(rr.buf.Bytes()), rr.source)
}

// newDeflateReader probes for a zlib wrapper first, then falls back to raw
// deflate. Servers ship both under the same Content-Encoding token.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	rr := newReplayReader(r)
	if zr, err := zlib.NewReader(rr); err == nil {
		return zr, nil
	}
	rr.replay()
	return flate.NewReader(rr), nil
}
