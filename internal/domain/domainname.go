package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeDomain reduces a host, URL or email address to the canonical
// lower-case ASCII domain used as reputation key: no scheme, path, port,
// userinfo or trailing dot.
func NormalizeDomain(s string) (string, error) {
	host := strings.TrimSpace(s)
	if host == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, s, err)
		}
		host = u.Host
	} else {
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
	}

	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidDomain, s)
	}

	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidDomain, s)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// underscore labels fail strict IDNA but show up in real mail
		if lenient, lerr := idna.Punycode.ToASCII(host); lerr == nil {
			return lenient, nil
		}
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, s, err)
	}
	return ascii, nil
}

// HostOf returns the normalized domain of a URL, or "" when it has none
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	d, err := NormalizeDomain(u.Host)
	if err != nil {
		return ""
	}
	return d
}
