package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
}

// NormalizeURL lower-cases scheme and host, drops fragments, tracking
// parameters and trailing slashes, and sorts the remaining query so two
// spellings of the same page hash the same.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		if trackingParams[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")

	return u.String()
}

// ExternalIDFromURL derives a stable identifier for pages whose URL carries
// no source id.
func ExternalIDFromURL(raw string) string {
	hash := sha256.Sum256([]byte(NormalizeURL(raw)))
	return "url-" + hex.EncodeToString(hash[:8])
}

// ExternalIDFromContent identifies an import that has no URL at all, such
// as a bare screenshot.
func ExternalIDFromContent(data []byte) string {
	hash := sha256.Sum256(data)
	return "img-" + hex.EncodeToString(hash[:8])
}
