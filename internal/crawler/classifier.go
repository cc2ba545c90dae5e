package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

var skippedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {},
	".css": {}, ".js": {}, ".mjs": {}, ".map": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {},
}

var skippedSubstrings = []string{"mailto:", "tel:", "javascript:"}

type categoryRule struct {
	category Category
	url      []string
	content  []string
}

// categoryRules is evaluated top to bottom; the first rule with a hit wins.
var categoryRules = []categoryRule{
	{
		category: CategoryPlacements,
		url:      []string{"placement", "recruit", "career", "tnp", "internship"},
		content:  []string{"placement", "recruiter", "campus recruitment"},
	},
	{
		category: CategoryAdmissions,
		url:      []string{"admission", "josaa", "ccmt", "prospectus", "jee"},
		content:  []string{"admission", "eligibility criteria"},
	},
	{
		category: CategoryAcademics,
		url:      []string{"academic", "curriculum", "syllabus", "course", "programme", "calendar", "exam"},
		content:  []string{"curriculum", "syllabus", "academic calendar"},
	},
	{
		category: CategoryFaculty,
		url:      []string{"faculty", "professor", "staff"},
		content:  []string{"professor", "faculty member"},
	},
	{
		category: CategoryStudents,
		url:      []string{"student", "hostel", "club", "scholarship", "alumni"},
		content:  []string{"hostel", "student activities"},
	},
	{
		category: CategoryResearch,
		url:      []string{"research", "publication", "project", "patent"},
		content:  []string{"research", "publication"},
	},
	{
		category: CategoryAdministration,
		url:      []string{"administration", "director", "registrar", "governance", "senate", "tender"},
		content:  []string{"registrar", "board of governors"},
	},
	{
		category: CategoryNews,
		url:      []string{"news", "notice", "announcement", "circular"},
		content:  []string{"notice", "announcement"},
	},
	{
		category: CategoryEvents,
		url:      []string{"event", "seminar", "workshop", "conference", "fest"},
		content:  []string{"workshop", "conference"},
	},
	{
		category: CategoryDepartments,
		url:      []string{"department", "dept", "cse", "mechanical", "civil", "electrical", "metallurgy"},
		content:  []string{"department of"},
	},
}

// Classifier decides which URLs belong to the target site and how content is categorized.
type Classifier struct {
	base   *url.URL
	domain string
	site   hostSet
	social hostSet
}

// NewClassifier builds a Classifier rooted at baseURL. The target domain is
// the base host without a leading "www.".
func NewClassifier(baseURL string, socialDomains []string) (*Classifier, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	host := strings.ToLower(base.Hostname())
	if host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	if socialDomains == nil {
		socialDomains = DefaultSocialDomains
	}
	domain := strings.TrimPrefix(host, "www.")
	return &Classifier{
		base:   base,
		domain: domain,
		site:   newHostSet("*." + domain),
		social: newHostSet(socialDomains...),
	}, nil
}

// Domain returns the target domain.
func (c *Classifier) Domain() string {
	return c.domain
}

// ExcludedHosts returns the social host patterns never crawled, sorted.
func (c *Classifier) ExcludedHosts() []string {
	return c.social.Patterns()
}

// BaseURL returns the origin relative references are resolved against.
func (c *Classifier) BaseURL() string {
	return c.base.String()
}

// Resolve turns ref into an absolute, normalized URL relative to base.
// It returns false for refs that cannot name a fetchable resource.
func (c *Classifier) Resolve(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	lower := strings.ToLower(ref)
	for _, s := range skippedSubstrings {
		if strings.HasPrefix(lower, s) {
			return "", false
		}
	}
	baseURL := c.base
	if base != "" {
		if parsed, err := url.Parse(base); err == nil && parsed.IsAbs() {
			baseURL = parsed
		}
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := baseURL.ResolveReference(refURL)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	normalized, err := NormalizeURL(abs.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}

// IsInDomainAndVisitable reports whether raw points into the target site and
// is not a static asset, a pseudo-scheme, a bare fragment, or a social host.
// PDFs pass; they are routed by link kind rather than dropped.
func (c *Classifier) IsInDomainAndVisitable(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range skippedSubstrings {
		if strings.Contains(lower, s) {
			return false
		}
	}
	abs, ok := c.Resolve("", raw)
	if !ok {
		return false
	}
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if c.social.Contains(host) || !c.site.Contains(host) {
		return false
	}
	if _, skip := skippedExtensions[extension(u)]; skip {
		return false
	}
	return true
}

// LinkKind classifies an absolute URL by extension first, then by host.
func (c *Classifier) LinkKind(abs string) LinkKind {
	u, err := url.Parse(abs)
	if err != nil {
		return LinkExternal
	}
	ext := extension(u)
	if ext == ".pdf" {
		return LinkPDF
	}
	if _, ok := imageExtensions[ext]; ok {
		return LinkImage
	}
	if c.site.Contains(u.Hostname()) {
		return LinkInternal
	}
	return LinkExternal
}

// Categorize returns the first category whose URL or content keywords match.
func (c *Classifier) Categorize(rawURL, contentSample string) Category {
	return Categorize(rawURL, contentSample)
}

// Categorize is the stateless form of (*Classifier).Categorize.
func Categorize(rawURL, contentSample string) Category {
	u := strings.ToLower(rawURL)
	content := strings.ToLower(contentSample)
	for _, rule := range categoryRules {
		if containsAny(u, rule.url) || (content != "" && containsAny(content, rule.content)) {
			return rule.category
		}
	}
	return CategoryGeneral
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
