// Package origin decides which cross-origin callers may reach the API.
package origin

import (
	"net/url"
	"strings"
)

// Wildcard in the allow-list admits every origin.
const Wildcard = "*"

// Policy is a pure allow predicate over a configured list of origins.
// Entries are exact origins ("https://example.com"), the wildcard "*", or a
// subdomain pattern ("https://*.netlify.app").
type Policy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []suffixPattern
}

type suffixPattern struct {
	scheme string
	suffix string // ".netlify.app"
}

// NewPolicy builds a Policy from configured origins. Blank entries are ignored.
func NewPolicy(allowed []string) *Policy {
	p := &Policy{exact: make(map[string]struct{}, len(allowed))}
	for _, raw := range allowed {
		entry := normalize(raw)
		if entry == "" {
			continue
		}
		if entry == Wildcard {
			p.any = true
			continue
		}
		if scheme, rest, ok := strings.Cut(entry, "://*."); ok && rest != "" {
			p.suffixes = append(p.suffixes, suffixPattern{scheme: scheme, suffix: "." + rest})
			continue
		}
		p.exact[entry] = struct{}{}
	}
	return p
}

// Allow reports whether a request declaring origin may proceed. Requests
// without an Origin header come from non-browser clients and are allowed.
func (p *Policy) Allow(origin string) bool {
	if strings.TrimSpace(origin) == "" {
		return true
	}
	if p == nil {
		return false
	}
	if p.any {
		return true
	}
	o := normalize(origin)
	if _, ok := p.exact[o]; ok {
		return true
	}
	if len(p.suffixes) == 0 {
		return false
	}
	u, err := url.Parse(o)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range p.suffixes {
		if u.Scheme == s.scheme && strings.HasSuffix(u.Host, s.suffix) && len(u.Host) > len(s.suffix) {
			return true
		}
	}
	return false
}

// AllowsAny reports whether the policy was configured with the wildcard.
func (p *Policy) AllowsAny() bool {
	return p != nil && p.any
}

func normalize(raw string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}
