// browser/cookies/publicsuffix.go
package cookies

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SuffixChecker reports whether a dot-separated domain suffix is a public
// suffix, i.e. a zone under which the general public registers names
// ("com", "gov.uk"). The jar consults it for same-site decisions.
type SuffixChecker func(suffix string) bool

// IsPublicSuffix answers from the embedded public suffix list.
func IsPublicSuffix(suffix string) bool {
	ps, _ := publicsuffix.PublicSuffix(suffix)
	return ps == suffix
}

// FindSecondLevelDomain returns the registrable domain of host: walking
// label boundaries right to left, the first suffix that is not itself a
// public suffix. A host made entirely of public suffixes comes back
// unchanged.
func FindSecondLevelDomain(host string, isPublicSuffix SuffixChecker) string {
	host = strings.ToLower(strings.Trim(host, "."))
	if host == "" {
		return ""
	}
	idx := len(host)
	for {
		dot := strings.LastIndexByte(host[:idx], '.')
		suffix := host[dot+1:]
		if !isPublicSuffix(suffix) {
			return suffix
		}
		if dot < 0 {
			return host
		}
		idx = dot
	}
}
