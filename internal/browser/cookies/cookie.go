// browser/cookies/cookie.go
package cookies

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Parse errors. Any of these rejects the whole Set-Cookie value; callers
// drop the cookie and carry on with the surrounding response.
var (
	ErrEmpty               = errors.New("empty cookie")
	ErrInvalidByteSequence = errors.New("invalid byte sequence in cookie")
	ErrInvalidNameValue    = errors.New("invalid cookie name/value")
	ErrInvalidDomain       = errors.New("invalid cookie domain")
	ErrInsecureSameSite    = errors.New("samesite=none requires secure")
)

// SameSite is the cookie's cross-site send policy.
type SameSite int

const (
	// SameSiteLax is the default when the attribute is absent or carries an
	// unrecognized value.
	SameSiteLax SameSite = iota
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	}
	return "Lax"
}

// Cookie is one normalized Set-Cookie record. Domain is stored lower-cased:
// dot-prefixed when it came from an explicit Domain attribute (the dot
// widens the cookie to subdomains), bare origin host otherwise. Path always
// begins with '/'. A zero Expires means a session cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
}

// Expired reports whether the cookie's lifetime has ended at now. Session
// cookies never expire.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// String renders the cookie in Set-Cookie form, for logs and inspection.
func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	b.WriteString("; Domain=")
	b.WriteString(c.Domain)
	b.WriteString("; Path=")
	b.WriteString(c.Path)
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(time.RFC1123))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	b.WriteString("; SameSite=")
	b.WriteString(c.SameSite.String())
	return b.String()
}

// longest recognized attribute key ("httponly" / "samesite")
const maxAttributeKeyLen = 8

// Parse normalizes one Set-Cookie header value received for origin. The
// grammar is deliberately looser than RFC 6265: quotes stay part of the
// value, unknown attributes are ignored, and among duplicate attributes
// the last valid occurrence wins. Malformed attribute values are skipped,
// never fatal; only byte validity, an empty name/value, a domain outside
// the origin's scope, and SameSite=None without Secure reject the cookie.
func Parse(origin *url.URL, header string) (*Cookie, error) {
	if err := validateBytes(header); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return nil, ErrEmpty
	}

	pair, attrs := trimmed, ""
	if i := strings.IndexByte(trimmed, ';'); i >= 0 {
		pair, attrs = trimmed[:i], trimmed[i+1:]
	}
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return nil, ErrInvalidNameValue
	}

	c := &Cookie{SameSite: SameSiteLax}
	if i := strings.IndexByte(pair, '='); i >= 0 {
		c.Name = strings.TrimSpace(pair[:i])
		c.Value = strings.TrimSpace(pair[i+1:])
	} else {
		// No '=': the whole token is a bare value with an empty name.
		c.Value = pair
	}
	if c.Name == "" && c.Value == "" {
		return nil, ErrInvalidNameValue
	}

	originHost := ""
	if origin != nil {
		originHost = strings.ToLower(origin.Hostname())
	}

	var (
		pathAttr    string
		domainAttr  string
		haveDomain  bool
		maxAge      int64
		haveMaxAge  bool
		expires     time.Time
		haveExpires bool
	)
	for _, piece := range strings.Split(attrs, ";") {
		key, val := piece, ""
		if i := strings.IndexByte(piece, '='); i >= 0 {
			key, val = piece[:i], piece[i+1:]
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(key) > maxAttributeKeyLen {
			continue
		}
		switch strings.ToLower(key) {
		case "path":
			// Anything not starting with '/' falls back to the default
			// path at finalization.
			if strings.HasPrefix(val, "/") {
				pathAttr = val
			}
		case "domain":
			if val == "" {
				continue
			}
			d := strings.ToLower(strings.TrimPrefix(val, "."))
			// A dotless domain is a TLD grab; localhost is the one pass.
			if d != "localhost" && !strings.Contains(d, ".") {
				return nil, ErrInvalidDomain
			}
			if !strings.HasSuffix(originHost, d) {
				return nil, ErrInvalidDomain
			}
			domainAttr = d
			haveDomain = true
		case "secure":
			// Presence-only: "Secure=Off" still sets the flag.
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "max-age":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				maxAge = n
				haveMaxAge = true
			}
		case "expires":
			if t, ok := parseExpires(val); ok {
				expires = t
				haveExpires = true
			}
		case "samesite":
			switch strings.ToLower(val) {
			case "strict":
				c.SameSite = SameSiteStrict
			case "none":
				c.SameSite = SameSiteNone
			default:
				c.SameSite = SameSiteLax
			}
		}
	}

	// Checked against the finally-resolved policy, so attribute order
	// within the header never matters.
	if c.SameSite == SameSiteNone && !c.Secure {
		return nil, ErrInsecureSameSite
	}

	// Max-Age beats Expires whenever both appear, in either order.
	if haveMaxAge {
		c.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	} else if haveExpires {
		c.Expires = expires
	}

	if pathAttr != "" {
		c.Path = pathAttr
	} else if origin != nil {
		c.Path = defaultPath(origin.Path)
	} else {
		c.Path = "/"
	}

	if haveDomain {
		c.Domain = "." + domainAttr
	} else {
		c.Domain = originHost
	}
	return c, nil
}

const (
	lsbMask = 0x0101010101010101
	msbMask = 0x8080808080808080
)

// validateBytes rejects any byte outside the printable range [32,126].
// Eight bytes are tested per step with word-wide compares, the tail byte by
// byte; semantics are identical to the plain scalar loop.
func validateBytes(s string) error {
	i := 0
	for ; i+8 <= len(s); i += 8 {
		w := uint64(s[i]) | uint64(s[i+1])<<8 | uint64(s[i+2])<<16 | uint64(s[i+3])<<24 |
			uint64(s[i+4])<<32 | uint64(s[i+5])<<40 | uint64(s[i+6])<<48 | uint64(s[i+7])<<56
		// Any byte >= 0x80.
		if w&msbMask != 0 {
			return ErrInvalidByteSequence
		}
		// Any byte < 0x20.
		if (w-0x20*lsbMask)&^w&msbMask != 0 {
			return ErrInvalidByteSequence
		}
		// Any byte == 0x7F.
		x := w ^ 0x7f7f7f7f7f7f7f7f
		if (x-lsbMask)&^x&msbMask != 0 {
			return ErrInvalidByteSequence
		}
	}
	for ; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return ErrInvalidByteSequence
		}
	}
	return nil
}

// defaultPath derives the cookie path from the origin's path when the
// header carries none: everything up to, not including, the last '/'.
func defaultPath(originPath string) string {
	if originPath == "" || originPath[0] != '/' {
		return "/"
	}
	idx := strings.LastIndexByte(originPath, '/')
	if idx <= 0 || idx == len(originPath)-1 {
		return "/"
	}
	return originPath[:idx]
}

var expiresLayouts = []string{
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
}

// parseExpires accepts the usual RFC822-ish cookie dates, retrying once
// with dashes rewritten to spaces for the common "17-Jul-2026" variant.
// Unparseable dates report !ok and the cookie stays a session cookie.
func parseExpires(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if retry := strings.ReplaceAll(value, "-", " "); retry != value {
		for _, layout := range expiresLayouts {
			if t, err := time.Parse(layout, retry); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
