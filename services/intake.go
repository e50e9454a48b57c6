package services

import (
	"context"
	"encoding/json"
	"fmt"

	"caixa_scrooper/importer"
	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

// IntakeService stages drafts produced by the URL and screenshot adapters
type IntakeService struct {
	store storage.Store
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(store storage.Store) *IntakeService {
	return &IntakeService{store: store}
}

// Stage inserts an adapter result as a pending staging record. Drafts
// without a price and listings already known to staging or the catalog are
// rejected.
func (s *IntakeService) Stage(ctx context.Context, res *importer.Result) (*models.StagingRecord, error) {
	if res == nil || res.Draft == nil || res.Draft.Price <= 0 {
		return nil, models.ErrExtractionFailed
	}
	draft := *res.Draft

	if draft.ExternalID != "" {
		known, err := s.store.FindExternalIDs(ctx, []string{draft.ExternalID})
		if err != nil {
			return nil, fmt.Errorf("find external ids: %w", err)
		}
		if known[draft.ExternalID] {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateExternalID, draft.ExternalID)
		}
	}

	raw := res.Raw
	if len(raw) == 0 || !json.Valid(raw) {
		b, err := json.Marshal(draft)
		if err != nil {
			return nil, fmt.Errorf("marshal draft: %w", err)
		}
		raw = b
	}

	rec := models.NewStagingRecord(draft, raw)
	if err := s.store.InsertStaging(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert staging: %w", err)
	}
	return rec, nil
}
