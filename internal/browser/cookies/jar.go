// browser/cookies/jar.go
package cookies

import (
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Jar holds cookies in insertion order, the order they are sent back in.
// Replacing a cookie keeps its original slot. The jar is safe for use from
// multiple goroutines; the fetch client shares one across redirects.
type Jar struct {
	mu             sync.Mutex
	cookies        []*Cookie
	isPublicSuffix SuffixChecker
}

// NewJar builds a jar backed by the embedded public suffix list.
func NewJar() *Jar {
	return NewJarWithChecker(IsPublicSuffix)
}

// NewJarWithChecker builds a jar with a custom public-suffix predicate.
func NewJarWithChecker(checker SuffixChecker) *Jar {
	return &Jar{isPublicSuffix: checker}
}

// Add stores cookie. A cookie with the same (name, domain, path) key is
// replaced in place, preserving its position. An incoming cookie already
// expired at requestTime instead deletes the stored one; expiring a cookie
// is how servers clear it.
func (j *Jar) Add(cookie *Cookie, requestTime time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	expired := cookie.Expired(requestTime)
	for i, existing := range j.cookies {
		if existing.Name == cookie.Name && existing.Domain == cookie.Domain && existing.Path == cookie.Path {
			if expired {
				copy(j.cookies[i:], j.cookies[i+1:])
				j.cookies[len(j.cookies)-1] = nil
				j.cookies = j.cookies[:len(j.cookies)-1]
			} else {
				j.cookies[i] = cookie
			}
			return
		}
	}
	if !expired {
		j.cookies = append(j.cookies, cookie)
	}
}

// RemoveExpired sweeps every cookie whose lifetime has ended at now,
// including the one at index zero.
func (j *Jar) RemoveExpired(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.removeExpiredLocked(now)
}

func (j *Jar) removeExpiredLocked(now time.Time) {
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if !c.Expired(now) {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(j.cookies); i++ {
		j.cookies[i] = nil
	}
	j.cookies = kept
}

// All returns a snapshot of the live cookies in insertion order.
func (j *Jar) All() []*Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.removeExpiredLocked(time.Now())
	out := make([]*Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// RequestOptions carries the request context ForRequest filters on.
type RequestOptions struct {
	// RequestTime drives the expiry sweep; zero means now.
	RequestTime time.Time
	// OriginURI is the document origin for the same-site computation. Nil
	// means a trusted first-party context where everything is same-site.
	OriginURI *url.URL
	// IsHTTP marks a network fetch as opposed to script access; only
	// network fetches may carry HttpOnly cookies.
	IsHTTP bool
	// IsNavigation marks a top-level navigation, which lets Lax cookies
	// cross sites.
	IsNavigation bool
	// Prefix is written ahead of the first matching cookie. Nothing is
	// written at all when no cookie matches.
	Prefix string
}

// ForRequest writes the Cookie header value for a request to target: the
// applicable cookies in insertion order, "; "-joined, each as name=value or
// a bare value when the name is empty. Expired cookies are swept first.
func (j *Jar) ForRequest(target *url.URL, w io.Writer, opts RequestOptions) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := opts.RequestTime
	if now.IsZero() {
		now = time.Now()
	}
	j.removeExpiredLocked(now)

	sameSite := j.areSameSite(opts.OriginURI, target)
	targetHost := strings.ToLower(target.Hostname())
	targetPath := target.Path
	if targetPath == "" {
		targetPath = "/"
	}

	first := true
	for _, c := range j.cookies {
		if !appliesTo(c, target.Scheme, targetHost, targetPath, sameSite, opts) {
			continue
		}
		if first {
			first = false
			if opts.Prefix != "" {
				if _, err := io.WriteString(w, opts.Prefix); err != nil {
					return err
				}
			}
		} else {
			if _, err := io.WriteString(w, "; "); err != nil {
				return err
			}
		}
		if c.Name != "" {
			if _, err := io.WriteString(w, c.Name); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "="); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// DocumentCookies writes the document.cookie view for a page at target:
// the non-HttpOnly cookies applying to the document's own URL.
func (j *Jar) DocumentCookies(target *url.URL, w io.Writer) error {
	return j.ForRequest(target, w, RequestOptions{IsNavigation: true})
}

// appliesTo runs the filter chain for one stored cookie against one
// request.
func appliesTo(c *Cookie, scheme, host, path string, sameSite bool, opts RequestOptions) bool {
	if c.HTTPOnly && !opts.IsHTTP {
		return false
	}
	if c.Secure && scheme != "https" {
		return false
	}
	if !sameSite {
		switch c.SameSite {
		case SameSiteStrict:
			return false
		case SameSiteLax:
			if !opts.IsNavigation {
				return false
			}
		}
	}
	if strings.HasPrefix(c.Domain, ".") {
		// Dotted domains cover the bare domain and every subdomain.
		if host != c.Domain[1:] && !strings.HasSuffix(host, c.Domain) {
			return false
		}
	} else if host != c.Domain {
		return false
	}
	if strings.HasSuffix(c.Path, "/") {
		if !strings.HasPrefix(path, c.Path) {
			return false
		}
	} else if path != c.Path && !strings.HasPrefix(path, c.Path+"/") {
		return false
	}
	return true
}

// areSameSite compares the registrable domains of origin and target. A nil
// origin is trusted first-party context.
func (j *Jar) areSameSite(origin, target *url.URL) bool {
	if origin == nil {
		return true
	}
	originHost := strings.ToLower(origin.Hostname())
	targetHost := strings.ToLower(target.Hostname())
	if originHost == targetHost {
		return true
	}
	return FindSecondLevelDomain(originHost, j.isPublicSuffix) == FindSecondLevelDomain(targetHost, j.isPublicSuffix)
}
