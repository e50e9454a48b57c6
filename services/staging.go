package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

// PromotionError reports a catalog row that was created while the staging
// record it came from could not be marked imported.
type PromotionError struct {
	StagingID  uuid.UUID
	PropertyID uuid.UUID
	Err        error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("%v (staging %s, property %s): %v",
		models.ErrPromotionInconsistency, e.StagingID, e.PropertyID, e.Err)
}

func (e *PromotionError) Unwrap() []error {
	return []error{models.ErrPromotionInconsistency, e.Err}
}

// StagingService handles review of staged listings and their promotion to
// the catalog
type StagingService struct {
	store storage.Store
	now   func() time.Time
}

// NewStagingService creates a new StagingService
func NewStagingService(store storage.Store) *StagingService {
	return &StagingService{store: store, now: time.Now}
}

// List returns staged records with the given status, or all of them for an
// empty status. AlreadyImported is set for records whose external id is in
// the catalog.
func (s *StagingService) List(ctx context.Context, status models.StagingStatus) ([]models.StagingRecord, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown staging status %q", status)
	}

	records, err := s.store.ListStaging(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list staging: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ExternalID != "" {
			ids = append(ids, r.ExternalID)
		}
	}
	imported, err := s.store.CatalogExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog external ids: %w", err)
	}
	for i := range records {
		records[i].AlreadyImported = records[i].ExternalID != "" && imported[records[i].ExternalID]
	}
	return records, nil
}

// Get returns one staged record
func (s *StagingService) Get(ctx context.Context, id uuid.UUID) (*models.StagingRecord, error) {
	rec, err := s.store.GetStaging(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get staging: %w", err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	return rec, nil
}

// Import promotes a pending record to the catalog. When the catalog row is
// written but the staging update fails, the created property is returned
// together with a *PromotionError.
func (s *StagingService) Import(ctx context.Context, id uuid.UUID) (*models.CatalogProperty, error) {
	// 1. Load and check the record
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StagingPending {
		return nil, fmt.Errorf("%w: record is %s", models.ErrInvalidTransition, rec.Status)
	}
	if rec.Price <= 0 {
		return nil, models.ErrExtractionFailed
	}

	// 2. Block a second catalog row for the same listing
	if rec.ExternalID != "" {
		existing, err := s.store.CatalogExternalIDs(ctx, []string{rec.ExternalID})
		if err != nil {
			return nil, fmt.Errorf("catalog external ids: %w", err)
		}
		if existing[rec.ExternalID] {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateExternalID, rec.ExternalID)
		}
	}

	// 3. Insert the catalog row
	prop := &models.CatalogProperty{
		ID:            uuid.New(),
		PropertyDraft: rec.PropertyDraft,
		Status:        models.CatalogAvailable,
	}
	prop.ApplyComputedDiscount()
	if err := s.store.InsertCatalog(ctx, prop); err != nil {
		return nil, fmt.Errorf("insert catalog: %w", err)
	}

	// 4. Mark the staging record imported
	if err := s.store.UpdateStagingStatus(ctx, rec.ID, models.StagingImported, s.now()); err != nil {
		log.Printf("Warning: property %s created but staging %s not marked imported: %v", prop.ID, rec.ID, err)
		return prop, &PromotionError{StagingID: rec.ID, PropertyID: prop.ID, Err: err}
	}

	return prop, nil
}

// Ignore moves a pending record to ignored
func (s *StagingService) Ignore(ctx context.Context, id uuid.UUID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != models.StagingPending {
		return fmt.Errorf("%w: record is %s", models.ErrInvalidTransition, rec.Status)
	}
	return s.store.UpdateStagingStatus(ctx, id, models.StagingIgnored, s.now())
}

// Delete removes a record in any state
func (s *StagingService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.store.DeleteStaging(ctx, id)
	if err != nil {
		return fmt.Errorf("delete staging: %w", err)
	}
	if !ok {
		return models.ErrNotFound
	}
	return nil
}

// BulkImport imports ids in order. A failure is recorded and does not stop
// the remaining imports.
func (s *StagingService) BulkImport(ctx context.Context, ids []uuid.UUID) *models.BulkResult {
	result := &models.BulkResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Errors++
			result.Failures = append(result.Failures, models.BulkFailure{ID: id, Error: ctx.Err().Error()})
			continue
		}

		_, err := s.Import(ctx, id)
		if err != nil {
			var pe *PromotionError
			if errors.As(err, &pe) {
				log.Printf("Warning: bulk import %s: %v", id, err)
			}
			result.Errors++
			result.Failures = append(result.Failures, models.BulkFailure{ID: id, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result
}

// BulkDelete removes the given records and returns how many existed
func (s *StagingService) BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.store.DeleteStagingBulk(ctx, ids)
}

// ClearAll empties staging
func (s *StagingService) ClearAll(ctx context.Context) (int, error) {
	return s.store.DeleteStagingAll(ctx)
}
