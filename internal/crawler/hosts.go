package crawler

import (
	"slices"
	"strings"
)

// DefaultSocialDomains are external hosts that never hold site content.
var DefaultSocialDomains = []string{
	"*.facebook.com",
	"*.twitter.com",
	"*.x.com",
	"*.instagram.com",
	"*.linkedin.com",
	"*.youtube.com",
	"youtu.be",
	"*.whatsapp.com",
	"t.me",
	"*.pinterest.com",
}

// hostSet matches hostnames against patterns. "name" matches only that host;
// "*.name" and ".name" match name and every subdomain of it.
type hostSet struct {
	hosts map[string]bool // true when subdomains match too
}

func newHostSet(patterns ...string) hostSet {
	set := hostSet{hosts: make(map[string]bool, len(patterns))}
	for _, raw := range patterns {
		p := strings.ToLower(strings.TrimSpace(raw))
		subtree := strings.HasPrefix(p, "*.") || strings.HasPrefix(p, ".")
		p = strings.TrimLeft(strings.TrimPrefix(p, "*"), ".")
		if p == "" {
			continue
		}
		set.hosts[p] = set.hosts[p] || subtree
	}
	return set
}

// Contains walks host and its parent domains, so lookups cost one map probe
// per label rather than one comparison per pattern.
func (s hostSet) Contains(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || len(s.hosts) == 0 {
		return false
	}
	if _, ok := s.hosts[host]; ok {
		return true
	}
	for i := strings.IndexByte(host, '.'); i >= 0; i = strings.IndexByte(host, '.') {
		host = host[i+1:]
		if subtree, ok := s.hosts[host]; ok && subtree {
			return true
		}
	}
	return false
}

// Patterns returns the set in pattern form, sorted.
func (s hostSet) Patterns() []string {
	out := make([]string, 0, len(s.hosts))
	for h, subtree := range s.hosts {
		if subtree {
			h = "*." + h
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
