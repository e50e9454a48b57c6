package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Kind int

const (
	KindHTML Kind = iota
	KindMarkdown
)

// Document is the normalized input every rule sees.
type Document struct {
	Kind Kind
	Raw  string
	// Text is the visible text with block boundaries kept as newlines.
	Text  string
	Lower string
	URL   string
	// Title is set by the extractor once resolved; type rules read it.
	Title string
	HTML  *goquery.Document
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "section": true, "table": true, "td": true, "th": true, "tr": true,
	"ul": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true,
}

func NewHTMLDocument(raw, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	collectText(doc.Selection, &b)
	text := normalizeLines(b.String())

	return &Document{
		Kind:  KindHTML,
		Raw:   raw,
		Text:  text,
		Lower: strings.ToLower(text),
		URL:   pageURL,
		HTML:  doc,
	}, nil
}

var (
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisRe = regexp.MustCompile(`\*\*|__|\*|` + "`")
)

func NewMarkdownDocument(raw, pageURL string) *Document {
	text := mdImageRe.ReplaceAllString(raw, "")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdEmphasisRe.ReplaceAllString(text, "")
	text = normalizeLines(text)

	return &Document{
		Kind:  KindMarkdown,
		Raw:   raw,
		Text:  text,
		Lower: strings.ToLower(text),
		URL:   pageURL,
	}
}

func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(c.Get(0).Data)
		case name == "#comment" || skipTags[name]:
		case blockTags[name]:
			b.WriteByte('\n')
			collectText(c, b)
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
			collectText(c, b)
			b.WriteByte(' ')
		}
	})
}

var spaceRunRe = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(spaceRunRe.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
