package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"caixa_scrooper/config"
)

// Link is a listing detail URL discovered on an index page, with what its
// slug says about the property.
type Link struct {
	URL        string
	ExternalID string
	City       string
	State      string
}

// LinkExtractor holds the compiled patterns and index-page heuristics of one
// source.
type LinkExtractor struct {
	src    *config.SourceConfig
	linkRe *regexp.Regexp
	idRe   *regexp.Regexp
	locRe  *regexp.Regexp
}

func NewLinkExtractor(src *config.SourceConfig) (*LinkExtractor, error) {
	linkRe, err := regexp.Compile(src.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("link_pattern: %w", err)
	}
	idRe, err := regexp.Compile(src.IDPattern)
	if err != nil {
		return nil, fmt.Errorf("id_pattern: %w", err)
	}
	locRe, err := regexp.Compile(src.LocationPattern)
	if err != nil {
		return nil, fmt.Errorf("location_pattern: %w", err)
	}
	return &LinkExtractor{src: src, linkRe: linkRe, idRe: idRe, locRe: locRe}, nil
}

// Links returns the detail links of an index page in document order,
// without repeats. Links without an id are dropped, and so are links whose
// slug names a state outside states. Links with no state in the slug are
// kept.
func (e *LinkExtractor) Links(html, pageURL string, states map[string]bool) []Link {
	base, _ := url.Parse(pageURL)

	seen := make(map[string]bool)
	var links []Link
	for _, m := range e.linkRe.FindAllStringSubmatch(html, -1) {
		href := m[0]
		if len(m) > 1 {
			href = m[1]
		}
		u := resolve(base, href)

		id, ok := e.ExternalID(u)
		if !ok || seen[id] {
			continue
		}
		city, state := e.Location(u)
		if len(states) > 0 && state != "" && !states[state] {
			continue
		}

		seen[id] = true
		links = append(links, Link{URL: u, ExternalID: id, City: city, State: state})
	}
	return links
}

// ExternalID returns "A-B" from the id groups of the detail URL.
func (e *LinkExtractor) ExternalID(u string) (string, bool) {
	m := e.idRe.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	if len(m) < 3 {
		return m[len(m)-1], true
	}
	return m[1] + "-" + m[2], true
}

// Location reads "em-{city-slug}-{uf}/" from a detail URL. The city is
// title-cased word by word and the state upper-cased.
func (e *LinkExtractor) Location(u string) (city, state string) {
	m := e.locRe.FindStringSubmatch(u)
	if len(m) < 3 {
		return "", ""
	}
	return titleSlug(m[1]), strings.ToUpper(m[2])
}

// Broken reports an index page that is too short to hold listings or that
// is the site's own error page.
func (e *LinkExtractor) Broken(html string) bool {
	if len(html) < e.src.MinListHTML {
		return true
	}
	for _, marker := range e.src.ErrorMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// HasNext reports whether an index page points at a following page.
func (e *LinkExtractor) HasNext(html string, page, links int) bool {
	if links >= e.src.NextLinkCount {
		return true
	}
	next := regexp.MustCompile(regexp.QuoteMeta(e.src.PageParam+"=") + strconv.Itoa(page+1) + `\b`)
	if next.MatchString(html) {
		return true
	}
	lower := strings.ToLower(html)
	for _, ind := range e.src.NextIndicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}

// LastPage reports whether paging should stop after a page with links.
func (e *LinkExtractor) LastPage(html string, page, links int) bool {
	return links < e.src.LastPageThreshold && !e.HasNext(html, page, links)
}

// PageURL returns the URL of page n of a seed. Page 1 is the seed itself.
func PageURL(seed, param string, n int) string {
	if n <= 1 {
		return seed
	}
	sep := "?"
	if strings.Contains(seed, "?") {
		sep = "&"
	}
	return seed + sep + param + "=" + strconv.Itoa(n)
}

func titleSlug(slug string) string {
	words := strings.Split(strings.ToLower(slug), "-")
	out := words[:0]
	for _, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		out = append(out, string(unicode.ToUpper(r))+w[size:])
	}
	return strings.Join(out, " ")
}

func resolve(base *url.URL, ref string) string {
	if base == nil || base.Host == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
