package extract

import (
	"fmt"
	"strings"

	"caixa_scrooper/models"
)

const (
	maxHTMLDescription     = 2000
	maxMarkdownDescription = 500
	defaultHTMLModality    = "Venda Direta Online"
)

// Hints carries what the caller already knows about a page, typically from
// the crawl link: its id, URL and the location encoded in the slug.
type Hints struct {
	ExternalID  string
	SourceURL   string
	City        string
	State       string
	ImagePrefix string
}

// HTML extracts a draft from a rendered listing detail page. Location from
// hints wins over the page text.
func HTML(raw string, h Hints) (*models.PropertyDraft, error) {
	doc, err := NewHTMLDocument(raw, h.SourceURL)
	if err != nil {
		return nil, err
	}
	return FromHTMLDocument(doc, h)
}

func FromHTMLDocument(doc *Document, h Hints) (*models.PropertyDraft, error) {
	draft := &models.PropertyDraft{
		ExternalID: h.ExternalID,
		SourceURL:  h.SourceURL,
	}

	title, _ := First(doc, HTMLTitleRules...)
	doc.Title = title

	fillCommon(doc, draft)

	if t, ok := First(doc, HTMLTypeRules...); ok {
		draft.Type = t
	} else {
		draft.Type = models.TypeHouse
	}

	draft.Address.City, draft.Address.State = h.City, h.State
	if draft.Address.City == "" || draft.Address.State == "" {
		if cs, ok := First(doc, CityStateRules...); ok {
			if draft.Address.City == "" {
				draft.Address.City = cs.City
			}
			if draft.Address.State == "" {
				draft.Address.State = cs.State
			}
		}
	}
	fillAddressDetail(doc, draft)

	if m, ok := First(doc, ModalityRules...); ok {
		draft.Modality = m
	} else {
		draft.Modality = defaultHTMLModality
	}

	if title == "" {
		title = SynthesizeTitle(draft.Type, draft.Bedrooms, draft.Address.City)
	}
	draft.Title = truncateRunes(title, maxTitleLen)

	if desc, ok := First(doc, HTMLDescriptionRules...); ok {
		draft.Description = truncateRunes(desc, maxHTMLDescription)
	} else {
		addr, _ := addressLine(doc)
		draft.Description = truncateRunes(strings.TrimSpace(strings.TrimSuffix(draft.Title+". "+addr, ". ")), maxHTMLDescription)
	}

	draft.Images = ImageFilter{Prefix: h.ImagePrefix}.Apply(htmlImageRefs(doc))

	return draft, validate(draft)
}

// fillCommon resolves the fields whose rules are shared by every document
// kind.
func fillCommon(doc *Document, draft *models.PropertyDraft) {
	if v, ok := First(doc, PriceRules...); ok {
		draft.Price = v
	}
	if v, ok := First(doc, OriginalPriceRules...); ok {
		draft.OriginalPrice = &v
	}
	if v, ok := First(doc, DiscountRules...); ok {
		draft.Discount = &v
	}
	draft.ApplyComputedDiscount()

	if v, ok := First(doc, BedroomRules...); ok {
		draft.Bedrooms = &v
	}
	if v, ok := First(doc, BathroomRules...); ok {
		draft.Bathrooms = &v
	}
	if v, ok := First(doc, ParkingRules...); ok {
		draft.ParkingSpaces = &v
	}

	if v, ok := First(doc, LandAreaRules...); ok {
		draft.LandArea = &v
	}
	if v, ok := First(doc, UsableAreaRules...); ok {
		draft.Area = v
	} else if draft.LandArea != nil {
		draft.Area = *draft.LandArea
	} else if v, ok := First(doc, GenericAreaRules...); ok {
		draft.Area = v
	}

	draft.AcceptsFGTS = AcceptsFGTS(doc)
	draft.AcceptsFinancing = AcceptsFinancing(doc)

	if v, ok := First(doc, AuctionDateRules...); ok {
		draft.AuctionDate = v
	}
}

func fillAddressDetail(doc *Document, draft *models.PropertyDraft) {
	if v, ok := First(doc, NeighborhoodRules(draft.Address.City)...); ok {
		draft.Address.Neighborhood = v
	}
	if v, ok := First(doc, StreetRules...); ok {
		draft.Address.Street = v
	}
	if v, ok := First(doc, ZipRules...); ok {
		draft.Address.ZipCode = v
	}
}

func validate(d *models.PropertyDraft) error {
	if d.Price > 0 {
		return nil
	}
	if d.SourceURL == "" {
		return models.ErrExtractionFailed
	}
	return fmt.Errorf("%s: %w", d.SourceURL, models.ErrExtractionFailed)
}
