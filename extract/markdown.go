package extract

import "caixa_scrooper/models"

// Markdown extracts a draft from a page rendered to markdown, as returned
// for arbitrary URLs. Hints only fill what the text does not provide.
func Markdown(raw string, h Hints) (*models.PropertyDraft, error) {
	return FromMarkdownDocument(NewMarkdownDocument(raw, h.SourceURL), h)
}

func FromMarkdownDocument(doc *Document, h Hints) (*models.PropertyDraft, error) {
	draft := &models.PropertyDraft{
		ExternalID: h.ExternalID,
		SourceURL:  h.SourceURL,
	}

	title, _ := First(doc, MarkdownTitleRules...)
	doc.Title = title

	fillCommon(doc, draft)

	if t, ok := First(doc, MarkdownTypeRules...); ok {
		draft.Type = t
	} else {
		draft.Type = models.TypeHouse
	}

	if cs, ok := First(doc, CityStateRules...); ok {
		draft.Address.City, draft.Address.State = cs.City, cs.State
	}
	if draft.Address.City == "" {
		draft.Address.City = h.City
	}
	if draft.Address.State == "" {
		draft.Address.State = h.State
	}
	fillAddressDetail(doc, draft)

	draft.Modality, _ = First(doc, ModalityRules...)

	if title == "" {
		title = SynthesizeTitle(draft.Type, draft.Bedrooms, draft.Address.City)
	}
	draft.Title = truncateRunes(title, maxTitleLen)

	if desc, ok := First(doc, MarkdownDescriptionRules...); ok {
		draft.Description = truncateRunes(desc, maxMarkdownDescription)
	}

	draft.Images = ImageFilter{Prefix: h.ImagePrefix}.Apply(markdownImageRefs(doc))

	return draft, validate(draft)
}
