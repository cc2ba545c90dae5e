package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL standardizes a URL so the visited set sees one key per page.
// It lowercases scheme and host, drops default ports and fragments, sorts the
// query, and maps an empty path to "/".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// extension returns the lowercased file extension of the URL path, including the dot.
func extension(u *url.URL) string {
	return strings.ToLower(path.Ext(u.Path))
}

// PathTail returns the last path segment of rawURL, or "" when there is none.
func PathTail(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	tail := path.Base(u.Path)
	if tail == "/" || tail == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(tail); err == nil {
		return unescaped
	}
	return tail
}
