package fetch

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeURL trims the input, prepends https:// when no scheme is given and
// checks that a host is present.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("fetch: empty url")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(raw, "://") {
			return "", eris.Errorf("fetch: unsupported scheme in %q", raw)
		}
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", raw)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return "", eris.Errorf("fetch: missing host in %q", raw)
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Domain returns the host of a URL without a leading "www.", lowercased.
// Unparseable input yields "".
func Domain(rawURL string) string {
	n, err := NormalizeURL(rawURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(n)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// SameSite reports whether two URLs share a host, ignoring "www.".
func SameSite(a, b string) bool {
	da, db := Domain(a), Domain(b)
	return da != "" && da == db
}

// resolve returns href resolved against base with the fragment removed.
// javascript:, mailto:, tel: and pure fragment links yield ok=false.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// ResolveLink resolves href against the page URL base. See resolve for the
// links that are rejected.
func ResolveLink(base, href string) (string, bool) {
	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	return resolve(u, href)
}
