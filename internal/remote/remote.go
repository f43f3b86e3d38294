// Package remote decides whether two git remote locators name the same
// repository. Locators written as https, ssh, scp-style or local paths are
// reduced to a canonical "host/path" form before comparison, so that
// "git@example.test:org/foo.git" and "https://example.test/org/foo/" are
// treated as the same remote.
package remote

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

var defaultPorts = map[string]string{
	"http":    "80",
	"https":   "443",
	"ssh":     "22",
	"git+ssh": "22",
	"ssh+git": "22",
	"git":     "9418",
}

// Equivalent reports whether a and b refer to the same repository.
func Equivalent(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Normalize reduces a remote locator to its canonical comparison key.
// Scheme, user-info and default ports are dropped, the host is lowercased,
// and trailing slashes and a trailing ".git" are removed from the path.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return trimRepoSuffix(s)
		}
		if u.Scheme == "file" {
			return trimRepoSuffix(filepath.Clean(u.Path))
		}
		host := strings.ToLower(u.Hostname())
		if port := u.Port(); port != "" && port != defaultPorts[strings.ToLower(u.Scheme)] {
			host += ":" + port
		}
		return host + "/" + cleanPath(u.Path)
	}

	if host, p, ok := splitSCP(s); ok {
		return strings.ToLower(host) + "/" + cleanPath(p)
	}

	return trimRepoSuffix(filepath.Clean(s))
}

// splitSCP recognizes the scp-like syntax "[user@]host:path". A colon
// after the first slash means s is a local path instead.
func splitSCP(s string) (host, p string, ok bool) {
	colon := strings.Index(s, ":")
	if colon <= 0 {
		return "", "", false
	}
	if slash := strings.Index(s, "/"); slash >= 0 && slash < colon {
		return "", "", false
	}
	host = s[:colon]
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	if host == "" {
		return "", "", false
	}
	return host, s[colon+1:], true
}

func cleanPath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	// ssh://host/~user/repo and host:~user/repo are left as-is.
	return trimRepoSuffix(p)
}

func trimRepoSuffix(p string) string {
	p = strings.TrimRight(p, "/")
	return strings.TrimSuffix(p, ".git")
}
