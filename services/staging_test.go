package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

func stageDraft(t *testing.T, store *storage.MemoryStore, externalID string, price float64) *models.StagingRecord {
	t.Helper()
	rec := models.NewStagingRecord(models.PropertyDraft{
		ExternalID: externalID,
		Title:      "Casa 2 quartos em Fortaleza",
		Type:       models.TypeHouse,
		Price:      price,
		Area:       80,
		Address:    models.Address{City: "Fortaleza", State: "CE"},
		Images:     []string{},
	}, nil)
	if err := store.InsertStaging(context.Background(), rec); err != nil {
		t.Fatalf("insert staging %s: %v", externalID, err)
	}
	return rec
}

func TestImport_PromotesPending(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1234567-1", 150000)

	prop, err := svc.Import(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if prop.Status != models.CatalogAvailable {
		t.Errorf("expected status available, got %s", prop.Status)
	}
	if prop.ExternalID != "1234567-1" {
		t.Errorf("expected external id carried over, got %q", prop.ExternalID)
	}

	got, _ := store.GetStaging(ctx, rec.ID)
	if got.Status != models.StagingImported {
		t.Fatalf("expected staging imported, got %s", got.Status)
	}
	if got.ReviewedAt == nil {
		t.Fatal("expected reviewed_at to be set")
	}
}

func TestImport_AtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1234567-1", 150000)

	if _, err := svc.Import(ctx, rec.ID); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	_, err := svc.Import(ctx, rec.ID)
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second import, got %v", err)
	}

	props, _ := store.ListCatalog(ctx, models.CatalogFilter{ShowSold: true})
	if len(props) != 1 {
		t.Fatalf("expected 1 catalog row, got %d", len(props))
	}
}

func TestImport_ConcurrentCallsCreateOneRow(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1234567-1", 150000)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Import(ctx, rec.ID)
		}()
	}
	wg.Wait()

	props, _ := store.ListCatalog(ctx, models.CatalogFilter{ShowSold: true})
	if len(props) != 1 {
		t.Fatalf("expected exactly 1 catalog row, got %d", len(props))
	}
}

func TestImport_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		svc := NewStagingService(storage.NewMemoryStore())
		if _, err := svc.Import(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ignored record", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := NewStagingService(store)
		rec := stageDraft(t, store, "1", 1000)
		if err := svc.Ignore(ctx, rec.ID); err != nil {
			t.Fatalf("Ignore failed: %v", err)
		}
		if _, err := svc.Import(ctx, rec.ID); !errors.Is(err, models.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("no price", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := NewStagingService(store)
		rec := stageDraft(t, store, "1", 0)
		if _, err := svc.Import(ctx, rec.ID); !errors.Is(err, models.ErrExtractionFailed) {
			t.Fatalf("expected ErrExtractionFailed, got %v", err)
		}
	})

	t.Run("external id already in catalog", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := NewStagingService(store)
		store.InsertCatalog(ctx, &models.CatalogProperty{
			PropertyDraft: models.PropertyDraft{ExternalID: "dup", Price: 1},
			Status:        models.CatalogAvailable,
		})
		rec := stageDraft(t, store, "dup", 1000)

		if _, err := svc.Import(ctx, rec.ID); !errors.Is(err, models.ErrDuplicateExternalID) {
			t.Fatalf("expected ErrDuplicateExternalID, got %v", err)
		}
		got, _ := store.GetStaging(ctx, rec.ID)
		if got.Status != models.StagingPending {
			t.Fatalf("expected record to stay pending, got %s", got.Status)
		}
	})
}

func TestImport_InsertFailureLeavesStagingUntouched(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1", 1000)
	store.FailInsertCatalog = errors.New("disk full")

	if _, err := svc.Import(ctx, rec.ID); err == nil {
		t.Fatal("expected an error")
	}
	got, _ := store.GetStaging(ctx, rec.ID)
	if got.Status != models.StagingPending || got.ReviewedAt != nil {
		t.Fatalf("expected untouched pending record, got %s", got.Status)
	}
}

func TestImport_StatusUpdateFailureIsInconsistency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1", 1000)
	store.FailUpdateStaging = errors.New("connection reset")

	prop, err := svc.Import(ctx, rec.ID)
	if !errors.Is(err, models.ErrPromotionInconsistency) {
		t.Fatalf("expected ErrPromotionInconsistency, got %v", err)
	}
	var pe *PromotionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PromotionError, got %T", err)
	}
	if prop == nil || pe.PropertyID != prop.ID || pe.StagingID != rec.ID {
		t.Fatalf("expected error to name both rows, got %+v", pe)
	}
	if got, _ := store.GetCatalog(ctx, prop.ID); got == nil {
		t.Fatal("expected catalog row to exist")
	}
}

func TestIgnore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	rec := stageDraft(t, store, "1", 1000)

	if err := svc.Ignore(ctx, rec.ID); err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}
	got, _ := store.GetStaging(ctx, rec.ID)
	if got.Status != models.StagingIgnored || got.ReviewedAt == nil {
		t.Fatalf("expected ignored with reviewed_at, got %s", got.Status)
	}
	if err := svc.Ignore(ctx, rec.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestBulkImport_ContinuesOnError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, stageDraft(t, store, fmt.Sprintf("100000%d-%d", i, i), 100000).ID)
	}
	store.FailInsertCatalogFor = map[string]error{"1000002-2": errors.New("connection reset")}

	result := svc.BulkImport(ctx, ids)
	if result.Imported != 4 || result.Errors != 1 {
		t.Fatalf("expected 4 imported and 1 error, got %d/%d", result.Imported, result.Errors)
	}
	if len(result.Failures) != 1 || result.Failures[0].ID != ids[2] {
		t.Fatalf("expected failure for the third id, got %+v", result.Failures)
	}

	failed, _ := store.GetStaging(ctx, ids[2])
	if failed.Status != models.StagingPending {
		t.Fatalf("expected failed record to stay pending, got %s", failed.Status)
	}
	for i, id := range ids {
		if i == 2 {
			continue
		}
		rec, _ := store.GetStaging(ctx, id)
		if rec.Status != models.StagingImported {
			t.Errorf("record %d: expected imported, got %s", i, rec.Status)
		}
	}
}

func TestList_MarksAlreadyImported(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	a := stageDraft(t, store, "a", 1000)
	stageDraft(t, store, "b", 1000)

	if _, err := svc.Import(ctx, a.ID); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	for _, r := range all {
		if want := r.ExternalID == "a"; r.AlreadyImported != want {
			t.Errorf("%s: expected already_imported=%v, got %v", r.ExternalID, want, r.AlreadyImported)
		}
	}

	pending, _ := svc.List(ctx, models.StagingPending)
	if len(pending) != 1 || pending[0].ExternalID != "b" {
		t.Fatalf("expected only b pending, got %+v", pending)
	}

	if _, err := svc.List(ctx, "archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDeleteOperations(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewStagingService(store)
	a := stageDraft(t, store, "a", 1000)
	b := stageDraft(t, store, "b", 1000)
	c := stageDraft(t, store, "c", 1000)
	stageDraft(t, store, "d", 1000)

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	n, err := svc.BulkDelete(ctx, []uuid.UUID{b.ID, c.ID, uuid.New()})
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	n, err = svc.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cleared, got %d", n)
	}
}
