package transport

import (
	"fmt"
	"net/http"
	"net/url"
)

// TokenParam is the query parameter carrying the bearer credential.
const TokenParam = "token"

// BuildURL validates base and adds the credential as the token query
// parameter. An empty token leaves the query unchanged.
func BuildURL(base, token string) (string, error) {
	u, err := ParseURL(base)
	if err != nil {
		return "", err
	}
	if token != "" {
		q := u.Query()
		q.Set(TokenParam, token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ParseURL parses raw and requires a ws or wss scheme and a host.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// RedactURL returns raw with the token parameter masked, for logging.
// Unparseable input is returned as a fixed placeholder.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has(TokenParam) {
		q.Set(TokenParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// BearerHeader returns the upgrade headers carrying token. An empty token
// yields an empty header.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// TokenFromRequest extracts the credential from the token query parameter,
// falling back to the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get(TokenParam); t != "" {
		return t
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
