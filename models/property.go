package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PropertyType string

const (
	TypeHouse      PropertyType = "house"
	TypeApartment  PropertyType = "apartment"
	TypeLand       PropertyType = "land"
	TypeCommercial PropertyType = "commercial"
)

// ParsePropertyType accepts both the stored English values and the
// Portuguese labels used on listing pages and in vision replies.
func ParsePropertyType(s string) (PropertyType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "house", "casa":
		return TypeHouse, true
	case "apartment", "apartamento":
		return TypeApartment, true
	case "land", "terreno", "lote":
		return TypeLand, true
	case "commercial", "comercial":
		return TypeCommercial, true
	}
	return "", false
}

// Label is the Portuguese name shown in synthesized titles.
func (t PropertyType) Label() string {
	switch t {
	case TypeApartment:
		return "Apartamento"
	case TypeLand:
		return "Terreno"
	case TypeCommercial:
		return "Imóvel Comercial"
	default:
		return "Casa"
	}
}

type Address struct {
	Street       string `json:"street,omitempty" db:"street"`
	Neighborhood string `json:"neighborhood" db:"neighborhood"`
	City         string `json:"city" db:"city"`
	State        string `json:"state" db:"state"`
	ZipCode      string `json:"zipcode,omitempty" db:"zipcode"`
}

// PropertyDraft is the output of every extractor. Optional numeric fields
// are pointers so "not found" stays distinct from zero.
type PropertyDraft struct {
	ExternalID       string       `json:"external_id"`
	Title            string       `json:"title"`
	Type             PropertyType `json:"type"`
	Price            float64      `json:"price"`
	OriginalPrice    *float64     `json:"original_price,omitempty"`
	Discount         *int         `json:"discount,omitempty"`
	Address          Address      `json:"address"`
	Bedrooms         *int         `json:"bedrooms,omitempty"`
	Bathrooms        *int         `json:"bathrooms,omitempty"`
	ParkingSpaces    *int         `json:"parking_spaces,omitempty"`
	Area             float64      `json:"area"`
	LandArea         *float64     `json:"land_area,omitempty"`
	Description      string       `json:"description"`
	Images           []string     `json:"images"`
	AcceptsFGTS      bool         `json:"accepts_fgts"`
	AcceptsFinancing bool         `json:"accepts_financing"`
	Modality         string       `json:"modality"`
	SourceURL        string       `json:"source_url"`
	AuctionDate      string       `json:"auction_date,omitempty"`
}

// ComputeDiscount returns round((1 - price/original)*100) when the original
// price is strictly above the sale price.
func ComputeDiscount(price float64, original *float64) *int {
	if original == nil || price <= 0 || *original <= price {
		return nil
	}
	d := int((1-price/(*original))*100 + 0.5)
	return &d
}

// ApplyComputedDiscount fills Discount from the prices unless the source
// already stated one.
func (d *PropertyDraft) ApplyComputedDiscount() {
	if d.Discount != nil {
		return
	}
	d.Discount = ComputeDiscount(d.Price, d.OriginalPrice)
}

type CatalogStatus string

const (
	CatalogAvailable CatalogStatus = "available"
	CatalogSold      CatalogStatus = "sold"
)

func (s CatalogStatus) Valid() bool {
	return s == CatalogAvailable || s == CatalogSold
}

type CatalogProperty struct {
	ID uuid.UUID `json:"id" db:"id"`
	PropertyDraft
	Status    CatalogStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
	SoldAt    *time.Time    `json:"sold_at" db:"sold_at"`
}

type SortOrder string

const (
	SortRecent    SortOrder = "recent"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortDiscount  SortOrder = "discount"
)

// PriceRange is one of the fixed browsing buckets, e.g. "100000-200000" or
// "500000+".
type PriceRange string

var PriceRanges = []PriceRange{"0-100000", "100000-200000", "200000-350000", "350000-500000", "500000+"}

// Bounds returns the inclusive/exclusive limits of the bucket. A max of 0
// means unbounded.
func (r PriceRange) Bounds() (min, max float64, ok bool) {
	switch r {
	case "0-100000":
		return 0, 100000, true
	case "100000-200000":
		return 100000, 200000, true
	case "200000-350000":
		return 200000, 350000, true
	case "350000-500000":
		return 350000, 500000, true
	case "500000+":
		return 500000, 0, true
	}
	return 0, 0, false
}

// CatalogFilter narrows a catalog listing. Sold properties are hidden
// unless ShowSold is set, and are always ordered after available ones.
// SoldOnly lists sold properties alone, most recently sold first.
type CatalogFilter struct {
	State      string
	Type       PropertyType
	PriceRange PriceRange
	Search     string
	ShowSold   bool
	SoldOnly   bool
	Sort       SortOrder
	Limit      int
}

// NortheastStates are the default crawl targets.
var NortheastStates = []string{"AL", "BA", "CE", "MA", "PB", "PE", "PI", "RN", "SE"}

// BrazilianStates lists every UF code.
var BrazilianStates = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT", "MS", "MG", "PA",
	"PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO", "RR", "SC", "SP", "SE", "TO",
}
