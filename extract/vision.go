package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"caixa_scrooper/models"
)

const maxVisionDescription = 2000

// VisionSchema is the exact key set the vision service is asked to fill.
// String fields are strings, booleans are booleans, images is an array.
var VisionSchema = map[string]any{
	"title":                "",
	"type":                 "casa",
	"price":                "",
	"original_price":       "",
	"address_street":       "",
	"address_neighborhood": "",
	"address_city":         "",
	"address_state":        "",
	"address_zipcode":      "",
	"bedrooms":             "",
	"bathrooms":            "",
	"area":                 "",
	"parking_spaces":       "",
	"description":          "",
	"images":               []string{},
	"accepts_fgts":         false,
	"accepts_financing":    false,
	"modality":             "",
	"auction_date":         "",
	"source_url":           "",
}

// NormalizeVisionReply parses the model's JSON content and coerces every
// field to its declared type. The service is not trusted to be consistent
// about omitted, null, numeric or stringly-typed values.
func NormalizeVisionReply(content string, sourceURL string) (*models.PropertyDraft, error) {
	content = stripCodeFence(content)

	var reply map[string]any
	if err := json.Unmarshal([]byte(content), &reply); err != nil || reply == nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object", models.ErrUnparsableResponse)
	}

	draft := &models.PropertyDraft{
		Title:            truncateRunes(coerceString(reply["title"]), maxTitleLen),
		Type:             models.TypeHouse,
		Description:      truncateRunes(coerceString(reply["description"]), maxVisionDescription),
		AcceptsFGTS:      coerceBool(reply["accepts_fgts"]),
		AcceptsFinancing: coerceBool(reply["accepts_financing"]),
		Modality:         coerceString(reply["modality"]),
		SourceURL:        coerceString(reply["source_url"]),
		Address: models.Address{
			Street:       coerceString(reply["address_street"]),
			Neighborhood: coerceString(reply["address_neighborhood"]),
			City:         coerceString(reply["address_city"]),
			State:        coerceState(reply["address_state"]),
			ZipCode:      coerceString(reply["address_zipcode"]),
		},
	}
	if draft.SourceURL == "" {
		draft.SourceURL = sourceURL
	}
	if t, ok := models.ParsePropertyType(coerceString(reply["type"])); ok {
		draft.Type = t
	}

	if v, ok := coerceNumber(reply["price"]); ok {
		draft.Price = v
	}
	if v, ok := coerceNumber(reply["original_price"]); ok && v > 0 {
		draft.OriginalPrice = &v
	}
	draft.ApplyComputedDiscount()

	if v, ok := coerceNumber(reply["area"]); ok {
		draft.Area = v
	}
	draft.Bedrooms = coerceIntPtr(reply["bedrooms"])
	draft.Bathrooms = coerceIntPtr(reply["bathrooms"])
	draft.ParkingSpaces = coerceIntPtr(reply["parking_spaces"])

	draft.AuctionDate = coerceDate(reply["auction_date"])

	draft.Images = ImageFilter{}.Apply(coerceStrings(reply["images"]))

	if draft.Title == "" {
		draft.Title = SynthesizeTitle(draft.Type, draft.Bedrooms, draft.Address.City)
	}

	return draft, validate(draft)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "sim", "yes", "1", "s":
			return true
		}
	}
	return false
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && t >= 0
	case string:
		return ParseNumber(t)
	}
	return 0, false
}

func coerceIntPtr(v any) *int {
	f, ok := coerceNumber(v)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func coerceDate(v any) string {
	s := coerceString(v)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func coerceState(v any) string {
	s := strings.ToUpper(coerceString(v))
	for _, uf := range models.BrazilianStates {
		if s == uf {
			return s
		}
	}
	return ""
}

func coerceStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
