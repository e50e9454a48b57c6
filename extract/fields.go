package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"caixa_scrooper/models"
)

const (
	maxTitleLen = 200
	minParaLen  = 50
)

// ============================================================================
// Prices
// ============================================================================

var (
	saleValueRe      = regexp.MustCompile(`(?i:valor\s+(?:de\s+)?(?:venda|atual))[^R]{0,60}R\$\s*([\d.,]+)`)
	valueLabelRe     = regexp.MustCompile(`(?i:(?:valor|pre[çc]o)\s*:)[^R]{0,20}R\$\s*([\d.,]+)`)
	groupedCurrentRe = regexp.MustCompile(`R\$\s*(\d{2,3}(?:\.\d{3})+(?:,\d{2})?)`)
	anyCurrencyRe    = regexp.MustCompile(`R\$\s*([\d.,]+)`)
	appraisalRe      = regexp.MustCompile(`(?i:valor\s+(?:de\s+)?avalia[çc][ãa]o)[^R]{0,60}R\$\s*([\d.,]+)`)
)

// classPrice reads a currency value from the first element whose class
// contains name.
func classPrice(name string) Rule[float64] {
	return func(d *Document) (float64, bool) {
		if d.HTML == nil {
			return 0, false
		}
		var out float64
		found := false
		d.HTML.Find(`[class*="` + name + `"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			m := anyCurrencyRe.FindStringSubmatch(text)
			raw := text
			if m != nil {
				raw = m[1]
			}
			if v, ok := ParseNumber(raw); ok && v >= MinPrice {
				out, found = v, true
				return false
			}
			return true
		})
		return out, found
	}
}

var PriceRules = []Rule[float64]{
	classPrice("discount-price"),
	priceRule(saleValueRe),
	priceRule(valueLabelRe),
	priceRule(groupedCurrentRe),
	priceRule(anyCurrencyRe),
}

var OriginalPriceRules = []Rule[float64]{
	classPrice("last-price"),
	priceRule(appraisalRe),
}

// ============================================================================
// Discount
// ============================================================================

var (
	discountPercentRe = regexp.MustCompile(`(?i)(\d{1,2})\s*%\s*(?:de\s+)?(?:desconto|abaixo)`)
	discountLabelRe   = regexp.MustCompile(`(?i)desconto\s*(?:de\s+)?:?\s*(\d{1,2})\s*%`)
	percentRe         = regexp.MustCompile(`(\d{1,2})\s*%`)
)

func positive(r Rule[int]) Rule[int] {
	return func(d *Document) (int, bool) {
		n, ok := r(d)
		return n, ok && n > 0
	}
}

func classDiscount(d *Document) (int, bool) {
	if d.HTML == nil {
		return 0, false
	}
	var out int
	found := false
	d.HTML.Find(`[class*="discount"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := percentRe.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		if n := atoi(m[1]); n > 0 {
			out, found = n, true
			return false
		}
		return true
	})
	return out, found
}

// DiscountRules only cover an explicitly stated percentage. A computed
// discount is applied afterwards when none of these match.
var DiscountRules = []Rule[int]{
	positive(intRule(discountPercentRe)),
	positive(intRule(discountLabelRe)),
	classDiscount,
}

// ============================================================================
// Rooms and areas
// ============================================================================

var BedroomRules = []Rule[int]{
	intRule(regexp.MustCompile(`(?i)(\d+)\s*(?:quartos?|dormit[oó]rios?|su[ií]tes?)`)),
	intRule(regexp.MustCompile(`(?i)(?:quartos?|dormit[oó]rios?)\s*:?\s*(\d+)`)),
}

var BathroomRules = []Rule[int]{
	intRule(regexp.MustCompile(`(?i)(\d+)\s*(?:banheiros?|wc|lavabos?)`)),
	intRule(regexp.MustCompile(`(?i)banheiros?\s*:?\s*(\d+)`)),
}

var ParkingRules = []Rule[int]{
	intRule(regexp.MustCompile(`(?i)(\d+)\s*(?:vagas?|garage[mn]s?|estacionamentos?)`)),
	intRule(regexp.MustCompile(`(?i)(?:vagas?|garagem)\s*:?\s*(\d+)`)),
}

var UsableAreaRules = []Rule[float64]{
	numberRule(regexp.MustCompile(`(?i)[áa]rea\s*(?:[úu]til|privativa|constru[íi]da)[^:\n]{0,20}:\s*([\d.,]+)\s*m`)),
	numberRule(regexp.MustCompile(`(?i)([\d.,]+)\s*m[²2]\s*(?:de\s+)?(?:[úu]til|privativ|constru[íi]d)`)),
}

var LandAreaRules = []Rule[float64]{
	numberRule(regexp.MustCompile(`(?i)[áa]rea\s*(?:do\s+)?terreno[^:\n]{0,20}:\s*([\d.,]+)\s*m`)),
	numberRule(regexp.MustCompile(`(?i)([\d.,]+)\s*m[²2]\s*(?:de\s+)?terreno`)),
}

var GenericAreaRules = []Rule[float64]{
	numberRule(regexp.MustCompile(`(?i)[áa]rea(?:\s+total)?\s*:\s*([\d.,]+)`)),
	numberRule(regexp.MustCompile(`([\d.,]+)\s*m[²2]`)),
	numberRule(regexp.MustCompile(`(?i)([\d.,]+)\s*metros?\s+quadrados`)),
}

// ============================================================================
// Type
// ============================================================================

type typeKeyword struct {
	re  *regexp.Regexp
	typ models.PropertyType
}

func keywordRe(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}])(?:` + strings.Join(words, "|") + `)(?:[^\p{L}]|$)`)
}

// typeKeywords is ordered: "apartamento" must win over "sala" in listings
// that mention both.
var typeKeywords = []typeKeyword{
	{keywordRe("apartamentos?", "apto"), models.TypeApartment},
	{keywordRe("terrenos?", "lotes?"), models.TypeLand},
	{keywordRe("comercial", "sala", "salas", "loja", "lojas", "galpão", "galpao", "prédio", "predio"), models.TypeCommercial},
}

// DetectType matches s against the keyword table.
func DetectType(s string) (models.PropertyType, bool) {
	s = strings.ToLower(s)
	for _, kw := range typeKeywords {
		if kw.re.MatchString(s) {
			return kw.typ, true
		}
	}
	return "", false
}

func typeFromTitle(d *Document) (models.PropertyType, bool) { return DetectType(d.Title) }
func typeFromBody(d *Document) (models.PropertyType, bool)  { return DetectType(d.Lower) }

// Detail pages carry navigation that mentions every property type, so only
// the title is consulted there.
var HTMLTypeRules = []Rule[models.PropertyType]{typeFromTitle}

var MarkdownTypeRules = []Rule[models.PropertyType]{typeFromBody}

// ============================================================================
// Location
// ============================================================================

const ufAlternation = `AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MT|MS|MG|PA|PB|PR|PE|PI|RJ|RN|RS|RO|RR|SC|SP|SE|TO`

// City words are joined by horizontal space only, so a street line above
// "Fortaleza - CE" never joins the city.
var cityStateRe = regexp.MustCompile(`(\p{Lu}[\p{L}']+(?:[ \t]+(?:d[aeo]s?[ \t]+)?\p{Lu}[\p{L}']+){0,3})[ \t]*[-–/][ \t]*(` + ufAlternation + `)\b`)

type knownCity struct {
	needle string
	city   string
	state  string
}

var knownCities = []knownCity{
	{"fortaleza", "Fortaleza", "CE"},
	{"recife", "Recife", "PE"},
	{"salvador", "Salvador", "BA"},
	{"natal", "Natal", "RN"},
	{"joão pessoa", "João Pessoa", "PB"},
	{"joao pessoa", "João Pessoa", "PB"},
	{"maceió", "Maceió", "AL"},
	{"maceio", "Maceió", "AL"},
	{"aracaju", "Aracaju", "SE"},
	{"teresina", "Teresina", "PI"},
	{"são luís", "São Luís", "MA"},
	{"sao luis", "São Luís", "MA"},
}

type CityState struct {
	City  string
	State string
}

func cityStatePattern(d *Document) (CityState, bool) {
	m := cityStateRe.FindStringSubmatch(d.Text)
	if m == nil {
		return CityState{}, false
	}
	return CityState{City: strings.TrimSpace(m[1]), State: m[2]}, true
}

func cityStateKnown(d *Document) (CityState, bool) {
	for _, kc := range knownCities {
		if strings.Contains(d.Lower, kc.needle) {
			return CityState{City: kc.city, State: kc.state}, true
		}
	}
	return CityState{}, false
}

var CityStateRules = []Rule[CityState]{cityStatePattern, cityStateKnown}

var (
	bairroRe       = regexp.MustCompile(`(?i)bairro\s*:\s*([^\n,;|]+)`)
	localizacaoRe  = regexp.MustCompile(`(?i)localiza[çc][ãa]o\s*:\s*([^\n,;|]+)`)
	addressLabelRe = regexp.MustCompile(`(?i)endere[çc]o[^:\n]{0,20}:\s*([^\n]+)`)
	placeNameRe    = regexp.MustCompile(`^\p{Lu}\p{Ll}+(?:\s+(?:d[aeo]s?\s+)?\p{Lu}\p{Ll}+)*$`)
	zipLabelRe     = regexp.MustCompile(`(?i)CEP\s*:?\s*(\d{5}-?\d{3})`)
	zipBareRe      = regexp.MustCompile(`\b(\d{5}-\d{3})\b`)
)

func labelRule(re *regexp.Regexp) Rule[string] {
	return func(d *Document) (string, bool) {
		s, ok := textGroup(d, re)
		if !ok {
			return "", false
		}
		s = strings.TrimSpace(strings.Split(s, " - ")[0])
		return s, s != ""
	}
}

func addressLine(d *Document) (string, bool) {
	return textGroup(d, addressLabelRe)
}

// neighborhoodFromAddress picks the first capitalised, number-free comma
// fragment after the street, skipping the city itself.
func neighborhoodFromAddress(city string) Rule[string] {
	return func(d *Document) (string, bool) {
		addr, ok := addressLine(d)
		if !ok {
			return "", false
		}
		parts := strings.Split(addr, ",")
		if len(parts) < 2 {
			return "", false
		}
		for _, p := range parts[1:] {
			p = strings.TrimSpace(strings.Split(p, " - ")[0])
			if p == "" || strings.EqualFold(p, city) || !placeNameRe.MatchString(p) {
				continue
			}
			return p, true
		}
		return "", false
	}
}

func NeighborhoodRules(city string) []Rule[string] {
	return []Rule[string]{
		labelRule(bairroRe),
		labelRule(localizacaoRe),
		neighborhoodFromAddress(city),
	}
}

// streetFromAddress keeps the street name and its number when the number
// is the next fragment.
func streetFromAddress(d *Document) (string, bool) {
	addr, ok := addressLine(d)
	if !ok {
		return "", false
	}
	parts := strings.Split(addr, ",")
	street := strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		next := strings.TrimSpace(parts[1])
		if next != "" && strings.IndexFunc(next, func(r rune) bool { return r >= '0' && r <= '9' }) == 0 {
			street += ", " + next
		}
	}
	return street, street != ""
}

var StreetRules = []Rule[string]{streetFromAddress}

var ZipRules = []Rule[string]{
	func(d *Document) (string, bool) { return textGroup(d, zipLabelRe) },
	func(d *Document) (string, bool) { return textGroup(d, zipBareRe) },
}

// ============================================================================
// Flags, modality, dates
// ============================================================================

func AcceptsFGTS(d *Document) bool {
	return strings.Contains(d.Lower, "fgts")
}

func AcceptsFinancing(d *Document) bool {
	return strings.Contains(d.Lower, "financia")
}

type modalityEntry struct {
	keys  []string
	label string
}

var modalityTable = []modalityEntry{
	{[]string{"leilão sfi", "leilao sfi", "leilao-sfi"}, "Leilão SFI"},
	{[]string{"leilão", "leilao"}, "Leilão"},
	{[]string{"licitação aberta", "licitacao aberta", "licitacao-aberta"}, "Licitação Aberta"},
	{[]string{"venda direta online", "venda online", "venda-online", "venda-direta-online"}, "Venda Direta Online"},
	{[]string{"venda direta", "venda-direta"}, "Venda Direta"},
}

var brandNames = []string{"leilão imóvel", "leilao imovel", "leilaoimovel", "leilão imovel"}

func matchModality(s string) (string, bool) {
	for _, m := range modalityTable {
		for _, k := range m.keys {
			if strings.Contains(s, k) {
				return m.label, true
			}
		}
	}
	return "", false
}

func modalityFromText(d *Document) (string, bool) {
	s := d.Lower
	for _, b := range brandNames {
		s = strings.ReplaceAll(s, b, " ")
	}
	return matchModality(s)
}

func modalityFromURL(d *Document) (string, bool) {
	if d.URL == "" {
		return "", false
	}
	s := strings.ToLower(d.URL)
	for _, b := range brandNames {
		s = strings.ReplaceAll(s, b, " ")
	}
	return matchModality(s)
}

var ModalityRules = []Rule[string]{modalityFromText, modalityFromURL}

var (
	auctionDateLabelRe = regexp.MustCompile(`(?i)(?:encerra|data)[^:\n]{0,40}:\s*(\d{2})/(\d{2})/(\d{4})`)
	auctionDateAtRe    = regexp.MustCompile(`(?i)(\d{2})/(\d{2})/(\d{4})\s*(?:às|as)(?:[^\p{L}]|$)`)
)

func dateRule(re *regexp.Regexp) Rule[string] {
	return func(d *Document) (string, bool) {
		m := re.FindStringSubmatch(d.Text)
		if m == nil {
			return "", false
		}
		iso := m[3] + "-" + m[2] + "-" + m[1]
		if _, err := time.Parse("2006-01-02", iso); err != nil {
			return "", false
		}
		return iso, true
	}
}

var AuctionDateRules = []Rule[string]{dateRule(auctionDateLabelRe), dateRule(auctionDateAtRe)}

// ============================================================================
// Title and description
// ============================================================================

var (
	titlePipeSuffixRe  = regexp.MustCompile(`\s*\|.*$`)
	titleBrandSuffixRe = regexp.MustCompile(`(?i)\s*-\s*Leil[ãa]o\s+Im[óo]vel.*$`)
	mdHeadingRe        = regexp.MustCompile(`(?m)^#+\s*(.+?)\s*#*\s*$`)
	mdStrongRe         = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
)

func cleanTitle(s string) string {
	s = normalizeLines(strings.ReplaceAll(s, "\n", " "))
	s = titlePipeSuffixRe.ReplaceAllString(s, "")
	s = titleBrandSuffixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func htmlSelectorTitle(sel string) Rule[string] {
	return func(d *Document) (string, bool) {
		if d.HTML == nil {
			return "", false
		}
		t := cleanTitle(d.HTML.Find(sel).First().Text())
		return t, t != ""
	}
}

func rawGroup(re *regexp.Regexp) Rule[string] {
	return func(d *Document) (string, bool) {
		m := re.FindStringSubmatch(d.Raw)
		if m == nil {
			return "", false
		}
		t := strings.TrimSpace(mdLinkRe.ReplaceAllString(m[1], "$1"))
		return t, t != ""
	}
}

var HTMLTitleRules = []Rule[string]{htmlSelectorTitle("h1"), htmlSelectorTitle("title")}

var MarkdownTitleRules = []Rule[string]{rawGroup(mdHeadingRe), rawGroup(mdStrongRe)}

// SynthesizeTitle builds "{Type} {N} Quartos em {City}", dropping the parts
// that are unknown.
func SynthesizeTitle(t models.PropertyType, bedrooms *int, city string) string {
	title := t.Label()
	if bedrooms != nil && *bedrooms > 0 {
		title += " " + itoa(*bedrooms) + " Quartos"
	}
	if city != "" {
		title += " em " + city
	}
	return title
}

func htmlDescription(sel string) Rule[string] {
	return func(d *Document) (string, bool) {
		if d.HTML == nil {
			return "", false
		}
		var out string
		d.HTML.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = normalizeLines(strings.ReplaceAll(s.Text(), "\n", " "))
			return out == ""
		})
		return out, out != ""
	}
}

func firstLongParagraph(d *Document) (string, bool) {
	if d.HTML == nil {
		return "", false
	}
	var out string
	d.HTML.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := normalizeLines(strings.ReplaceAll(s.Text(), "\n", " "))
		if len([]rune(t)) > minParaLen {
			out = t
			return false
		}
		return true
	})
	return out, out != ""
}

var HTMLDescriptionRules = []Rule[string]{
	htmlDescription(`[class*="description"]`),
	htmlDescription(`p[class*="observacoes"]`),
	firstLongParagraph,
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

func markdownParagraph(d *Document) (string, bool) {
	for _, para := range blankLineRe.Split(d.Raw, -1) {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "!") || isListBlock(para) {
			continue
		}
		t := mdImageRe.ReplaceAllString(para, "")
		t = mdLinkRe.ReplaceAllString(t, "$1")
		t = mdEmphasisRe.ReplaceAllString(t, "")
		t = normalizeLines(strings.ReplaceAll(t, "\n", " "))
		if len([]rune(t)) > minParaLen {
			return t, true
		}
	}
	return "", false
}

var MarkdownDescriptionRules = []Rule[string]{markdownParagraph}

// isListBlock reports whether every line of a paragraph is a list item or a
// table row.
func isListBlock(para string) bool {
	for _, line := range strings.Split(para, "\n") {
		line = strings.TrimSpace(line)
		if !(strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") || strings.HasPrefix(line, "|")) {
			return false
		}
	}
	return true
}
