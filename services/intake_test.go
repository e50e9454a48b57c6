package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"caixa_scrooper/importer"
	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

func TestStage_InsertsPendingWithRaw(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewIntakeService(store)

	res := &importer.Result{
		Draft: &models.PropertyDraft{ExternalID: "1234567-890123", Title: "Casa", Price: 180000},
		Raw:   json.RawMessage(`{"source":"url","url":"https://example.com","format":"markdown"}`),
	}
	rec, err := svc.Stage(ctx, res)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if rec.Status != models.StagingPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}

	got, _ := store.GetStaging(ctx, rec.ID)
	if got == nil {
		t.Fatal("expected record to be stored")
	}
	if string(got.RawData) != string(res.Raw) {
		t.Errorf("expected raw payload kept, got %s", got.RawData)
	}
}

func TestStage_WithoutPriceStagesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewIntakeService(store)

	_, err := svc.Stage(ctx, &importer.Result{Draft: &models.PropertyDraft{ExternalID: "x", Title: "Casa"}})
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if _, err := svc.Stage(ctx, nil); !errors.Is(err, models.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed for nil result, got %v", err)
	}

	all, _ := store.ListStaging(ctx, "")
	if len(all) != 0 {
		t.Fatalf("expected nothing staged, got %d", len(all))
	}
}

func TestStage_KnownListingIsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewIntakeService(store)
	store.InsertCatalog(ctx, &models.CatalogProperty{
		PropertyDraft: models.PropertyDraft{ExternalID: "known", Price: 1},
		Status:        models.CatalogAvailable,
	})

	_, err := svc.Stage(ctx, &importer.Result{Draft: &models.PropertyDraft{ExternalID: "known", Price: 1000}})
	if !errors.Is(err, models.ErrDuplicateExternalID) {
		t.Fatalf("expected ErrDuplicateExternalID, got %v", err)
	}
}

func TestStage_MissingRawFallsBackToDraft(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewIntakeService(store)

	rec, err := svc.Stage(ctx, &importer.Result{Draft: &models.PropertyDraft{ExternalID: "img-01", Price: 90000}})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.RawData, &raw); err != nil {
		t.Fatalf("expected JSON raw data: %v", err)
	}
	if raw["external_id"] != "img-01" {
		t.Fatalf("expected draft JSON, got %s", rec.RawData)
	}
}
