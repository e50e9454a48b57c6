package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

const (
	featuredLimit     = 6
	recentlySoldLimit = 3
)

// ErrInvalidProperty is returned by CreateManual when a required field is
// missing.
var ErrInvalidProperty = errors.New("invalid property")

// CatalogService manages published properties
type CatalogService struct {
	store storage.Store
	now   func() time.Time
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(store storage.Store) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// List returns catalog properties matching the filter
func (s *CatalogService) List(ctx context.Context, f models.CatalogFilter) ([]models.CatalogProperty, error) {
	if f.State != "" {
		f.State = strings.ToUpper(f.State)
	}
	if f.PriceRange != "" {
		if _, _, ok := f.PriceRange.Bounds(); !ok {
			return nil, fmt.Errorf("unknown price range %q", f.PriceRange)
		}
	}
	return s.store.ListCatalog(ctx, f)
}

// Featured returns the available properties with the largest discounts
func (s *CatalogService) Featured(ctx context.Context) ([]models.CatalogProperty, error) {
	return s.store.ListCatalog(ctx, models.CatalogFilter{Sort: models.SortDiscount, Limit: featuredLimit})
}

// RecentlySold returns the most recently sold properties
func (s *CatalogService) RecentlySold(ctx context.Context) ([]models.CatalogProperty, error) {
	return s.store.ListCatalog(ctx, models.CatalogFilter{SoldOnly: true, Limit: recentlySoldLimit})
}

// SetStatus marks a property sold or available. Sold stamps sold_at and
// available clears it.
func (s *CatalogService) SetStatus(ctx context.Context, id uuid.UUID, status models.CatalogStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown catalog status %q", models.ErrInvalidTransition, status)
	}

	var soldAt *time.Time
	if status == models.CatalogSold {
		now := s.now()
		soldAt = &now
	}
	return s.store.UpdateCatalogStatus(ctx, id, status, soldAt)
}

// Delete removes one property
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.store.DeleteCatalog(ctx, id)
	if err != nil {
		return fmt.Errorf("delete catalog: %w", err)
	}
	if !ok {
		return models.ErrNotFound
	}
	return nil
}

// ClearAll empties the catalog
func (s *CatalogService) ClearAll(ctx context.Context) (int, error) {
	return s.store.DeleteCatalogAll(ctx)
}

// CreateManual publishes a draft entered by hand, skipping staging
func (s *CatalogService) CreateManual(ctx context.Context, draft models.PropertyDraft) (*models.CatalogProperty, error) {
	if err := validateManual(&draft); err != nil {
		return nil, err
	}

	if draft.ExternalID != "" {
		existing, err := s.store.CatalogExternalIDs(ctx, []string{draft.ExternalID})
		if err != nil {
			return nil, fmt.Errorf("catalog external ids: %w", err)
		}
		if existing[draft.ExternalID] {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateExternalID, draft.ExternalID)
		}
	}

	draft.Discount = nil
	draft.ApplyComputedDiscount()
	if draft.Images == nil {
		draft.Images = []string{}
	}

	prop := &models.CatalogProperty{
		ID:            uuid.New(),
		PropertyDraft: draft,
		Status:        models.CatalogAvailable,
	}
	if err := s.store.InsertCatalog(ctx, prop); err != nil {
		return nil, fmt.Errorf("insert catalog: %w", err)
	}
	return prop, nil
}

func validateManual(d *models.PropertyDraft) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Address.City = strings.TrimSpace(d.Address.City)
	d.Address.State = strings.ToUpper(strings.TrimSpace(d.Address.State))

	var missing []string
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Price <= 0 {
		missing = append(missing, "price")
	}
	if d.Area <= 0 {
		missing = append(missing, "area")
	}
	if d.Address.City == "" {
		missing = append(missing, "city")
	}
	if d.Address.State == "" {
		missing = append(missing, "state")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProperty, strings.Join(missing, ", "))
	}
	if d.Type == "" {
		d.Type = models.TypeHouse
	}
	return nil
}
