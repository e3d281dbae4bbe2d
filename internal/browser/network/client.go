// browser/network/client.go
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strixweb/strix/internal/browser/cookies"
	"github.com/strixweb/strix/internal/browser/dom"
	"github.com/strixweb/strix/internal/config"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrTooManyRedirects  = errors.New("redirect limit exceeded")
)

// Page is the outcome of a navigation: the final URL after redirects, the
// parsed document, and the response metadata of the last hop.
type Page struct {
	URL        *url.URL
	Document   *dom.Document
	StatusCode int
	Header     http.Header
	// Redirects lists the URLs of the 3xx hops, in order.
	Redirects []string
}

// Client fetches pages the way a browser does: it follows redirects
// itself, carries one cookie jar across every hop, decodes compressed
// bodies, and rate limits outbound requests.
type Client struct {
	cfg     config.FetchConfig
	http    *http.Client
	jar     *cookies.Jar
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient builds a fetch client from cfg. A nil jar gets a fresh one
// backed by the embedded public suffix list; a nil logger is silenced.
func NewClient(cfg config.FetchConfig, jar *cookies.Jar, log *zap.Logger) *Client {
	if jar == nil {
		jar = cookies.NewJar()
	}
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Concurrency
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &DecodingTransport{Base: newTransport(cfg.IgnoreTLSErrors)},
			Timeout:   cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				// Redirects are followed manually so every hop updates the
				// jar and the origin tracking.
				return http.ErrUseLastResponse
			},
		},
		jar:     jar,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.Named("fetch"),
	}
}

// Jar exposes the client's cookie jar.
func (c *Client) Jar() *cookies.Jar { return c.jar }

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() { c.http.CloseIdleConnections() }

// FetchDocument navigates to rawURL and parses the final response body
// into a document. The URL of each intermediate hop is recorded on the
// returned page.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) (*Page, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, target.Scheme)
	}

	log := c.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("url", target.String()),
	)

	var (
		origin    *url.URL // previous hop; nil on the first request
		redirects []string
	)
	for hop := 0; ; hop++ {
		if hop > c.cfg.MaxRedirects {
			return nil, fmt.Errorf("%w after %d hops", ErrTooManyRedirects, hop)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.get(ctx, target, origin)
		if err != nil {
			return nil, err
		}
		c.storeCookies(target, resp, log)

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drain(resp.Body)
			if location == "" {
				return nil, fmt.Errorf("status %d without a location header", resp.StatusCode)
			}
			next, err := target.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("resolve redirect %q: %w", location, err)
			}
			if next.Scheme != "http" && next.Scheme != "https" {
				return nil, fmt.Errorf("%w: redirect to %q", ErrUnsupportedScheme, next.Scheme)
			}
			log.Debug("following redirect",
				zap.Int("status", resp.StatusCode),
				zap.String("location", next.String()))
			redirects = append(redirects, target.String())
			origin, target = target, next
			continue
		}

		doc, parseErr := dom.Parse(resp.Body, target)
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug("closing response body", zap.Error(closeErr))
		}
		if parseErr != nil {
			return nil, fmt.Errorf("parse document: %w", parseErr)
		}
		log.Info("fetched document",
			zap.Int("status", resp.StatusCode),
			zap.Int("redirects", len(redirects)))
		return &Page{
			URL:        target,
			Document:   doc,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Redirects:  redirects,
		}, nil
	}
}

// get issues one GET for target, attaching the cookies that apply.
func (c *Client) get(ctx context.Context, target, origin *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	err = c.jar.ForRequest(target, buf, cookies.RequestOptions{
		RequestTime:  time.Now(),
		OriginURI:    origin,
		IsHTTP:       true,
		IsNavigation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble cookie header: %w", err)
	}
	if buf.Len() > 0 {
		req.Header.Set("Cookie", buf.String())
	}
	return c.http.Do(req)
}

// storeCookies folds every Set-Cookie header of resp into the jar.
// Rejected cookies are logged and dropped, as a browser would.
func (c *Client) storeCookies(target *url.URL, resp *http.Response, log *zap.Logger) {
	now := time.Now()
	for _, raw := range resp.Header.Values("Set-Cookie") {
		ck, err := cookies.Parse(target, raw)
		if err != nil {
			log.Debug("dropping cookie", zap.String("set_cookie", raw), zap.Error(err))
			continue
		}
		c.jar.Add(ck, now)
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// drain consumes what remains of a redirect body so the connection can be
// reused, then closes it.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
