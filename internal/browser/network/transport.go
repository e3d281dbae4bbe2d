// browser/network/transport.go
package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout           = 15 * time.Second
	keepAliveInterval     = 30 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 30 * time.Second

	maxIdleConns        = 64
	maxIdleConnsPerHost = 6
	idleConnTimeout     = 90 * time.Second
)

// newTLSConfig builds the client TLS posture: TLS 1.2 floor, PFS-only
// suites, modern curves, session resumption, and h2 preferred via ALPN.
func newTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		},
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
		NextProtos:         []string{"h2", "http/1.1"},
		InsecureSkipVerify: insecure,
	}
}

// newTransport builds the pooled transport that sits under the decoding
// wrapper. The transport's built-in gzip handling is disabled;
// DecodingTransport owns content codings.
func newTransport(insecureTLS bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAliveInterval,
		// Happy Eyeballs fallback for dual-stack hosts.
		FallbackDelay: 300 * time.Millisecond,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       newTLSConfig(insecureTLS),
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}
}
