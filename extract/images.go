package extract

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	MaxImages   = 10
	minImageDim = 200
)

var imageDenylist = []string{
	"logo", "banner", "placeholder", "watermark", "marca-d", "icon",
	"sprite", "avatar", "loading", "blank.",
}

var (
	thumbSuffixRe = regexp.MustCompile(`-[mp]\.(webp|jpe?g)$`)
	dimensionRe   = regexp.MustCompile(`(\d{2,4})x(\d{2,4})`)
	mdImageURLRe  = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^\s)]+)`)
)

// ImageFilter decides which references survive into a draft.
type ImageFilter struct {
	// Prefix, when set, keeps only URLs under this host/path.
	Prefix string
	Max    int
}

// Apply upsizes thumbnails, drops denylisted and tiny images, dedupes, and
// caps the list while keeping document order.
func (f ImageFilter) Apply(refs []string) []string {
	max := f.Max
	if max <= 0 {
		max = MaxImages
	}

	seen := make(map[string]bool)
	out := make([]string, 0, min(len(refs), max))
	for _, ref := range refs {
		u := strings.TrimSpace(ref)
		if u == "" || strings.HasPrefix(u, "data:") {
			continue
		}
		if f.Prefix != "" && !strings.HasPrefix(u, f.Prefix) {
			continue
		}
		u = UpsizeImage(u)
		if seen[u] || Denied(u) {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == max {
			break
		}
	}
	return out
}

// UpsizeImage rewrites "-m"/"-p" thumbnail suffixes to the "-g" variant.
func UpsizeImage(u string) string {
	return thumbSuffixRe.ReplaceAllString(u, "-g.$1")
}

// Denied reports whether u matches the denylist or names a tiny image in
// its filename.
func Denied(u string) bool {
	lower := strings.ToLower(u)
	for _, bad := range imageDenylist {
		if strings.Contains(lower, bad) {
			return true
		}
	}

	name := path.Base(lower)
	if p, err := url.Parse(lower); err == nil {
		name = path.Base(p.Path)
	}
	if m := dimensionRe.FindStringSubmatch(name); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < minImageDim && h < minImageDim {
			return true
		}
	}
	return false
}

func htmlImageRefs(d *Document) []string {
	if d.HTML == nil {
		return nil
	}
	base, _ := url.Parse(d.URL)

	var refs []string
	d.HTML.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			v, ok := s.Attr(attr)
			if !ok || strings.TrimSpace(v) == "" || strings.HasPrefix(v, "data:") {
				continue
			}
			refs = append(refs, resolve(base, strings.TrimSpace(v)))
		}
	})
	return refs
}

func markdownImageRefs(d *Document) []string {
	var refs []string
	for _, m := range mdImageURLRe.FindAllStringSubmatch(d.Raw, -1) {
		refs = append(refs, m[1])
	}
	return refs
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
