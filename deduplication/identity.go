package deduplication

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Identity is the normalized (title, link) pair that deduplicates articles across clients
type Identity struct {
	Title string
	Link  string
}

// NewIdentity normalizes an article's title and link.
// Normalization steps:
// - Link: remove fragment, remove common tracking query params (utm_*, fbclid, gclid), lowercase scheme and host
// - Title: collapse whitespace and lowercase
func NewIdentity(title, link string) Identity {
	return Identity{Title: normalizeTitle(title), Link: normalizeURL(link)}
}

// Key returns sha256(normalizedLink + "|" + normalizedTitle) as hex
func (id Identity) Key() string {
	h := sha256.Sum256([]byte(id.Link + "|" + id.Title))
	return hex.EncodeToString(h[:])
}

// Empty reports whether neither component carries any information
func (id Identity) Empty() bool {
	return id.Title == "" && id.Link == ""
}

// NormalizeAndHash is shorthand for NewIdentity(title, link).Key()
func NormalizeAndHash(title, link string) string {
	return NewIdentity(title, link).Key()
}

func normalizeTitle(t string) string {
	t = strings.TrimSpace(t)
	t = strings.ToLower(t)
	// collapse multiple whitespace
	fields := strings.Fields(t)
	return strings.Join(fields, " ")
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimRight(u.String(), "/")
}
