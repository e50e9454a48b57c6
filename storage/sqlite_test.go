package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"caixa_scrooper/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDraft(externalID string, price float64) models.PropertyDraft {
	orig := price * 1.3
	beds := 3
	return models.PropertyDraft{
		ExternalID:    externalID,
		Title:         "Casa 3 quartos em Fortaleza",
		Type:          models.TypeHouse,
		Price:         price,
		OriginalPrice: &orig,
		Discount:      models.ComputeDiscount(price, &orig),
		Address:       models.Address{Neighborhood: "Aldeota", City: "Fortaleza", State: "CE"},
		Bedrooms:      &beds,
		Area:          98.5,
		Images:        []string{"https://image.leilaoimovel.com.br/images/1-g.webp"},
		AcceptsFGTS:   true,
		Modality:      "Venda Direta Online",
		SourceURL:     "https://www.leilaoimovel.com.br/imovel/" + externalID,
	}
}

func TestSQLiteStore_StagingRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	rec := models.NewStagingRecord(sampleDraft("1234567-890123", 235000), []byte(`{"html":"<p>x</p>"}`))
	if err := store.InsertStaging(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetStaging(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected record")
	}
	if got.ExternalID != "1234567-890123" || got.Price != 235000 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Bedrooms == nil || *got.Bedrooms != 3 {
		t.Fatalf("expected 3 bedrooms, got %v", got.Bedrooms)
	}
	if got.Bathrooms != nil {
		t.Fatalf("expected nil bathrooms, got %d", *got.Bathrooms)
	}
	if len(got.Images) != 1 {
		t.Fatalf("expected 1 image, got %v", got.Images)
	}
	if got.Status != models.StagingPending || got.ReviewedAt != nil {
		t.Fatalf("expected pending unreviewed, got %s %v", got.Status, got.ReviewedAt)
	}
	if string(got.RawData) != `{"html":"<p>x</p>"}` {
		t.Fatalf("unexpected raw data %s", got.RawData)
	}

	missing, err := store.GetStaging(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown id, got %v, %v", missing, err)
	}
}

func TestSQLiteStore_DuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	if err := store.InsertStaging(ctx, models.NewStagingRecord(sampleDraft("dup-1", 200000), nil)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.InsertStaging(ctx, models.NewStagingRecord(sampleDraft("dup-1", 210000), nil))
	if !errors.Is(err, models.ErrDuplicateExternalID) {
		t.Fatalf("expected ErrDuplicateExternalID, got %v", err)
	}
}

func TestSQLiteStore_StatusOnlyLeavesPending(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	rec := models.NewStagingRecord(sampleDraft("st-1", 200000), nil)
	if err := store.InsertStaging(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.UpdateStagingStatus(ctx, rec.ID, models.StagingImported, time.Now()); err != nil {
		t.Fatalf("first update: %v", err)
	}
	err := store.UpdateStagingStatus(ctx, rec.ID, models.StagingIgnored, time.Now())
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := store.GetStaging(ctx, rec.ID)
	if got.Status != models.StagingImported || got.ReviewedAt == nil {
		t.Fatalf("expected imported with reviewed_at, got %s %v", got.Status, got.ReviewedAt)
	}
}

func TestSQLiteStore_FindExternalIDsUnion(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	if err := store.InsertStaging(ctx, models.NewStagingRecord(sampleDraft("in-staging", 200000), nil)); err != nil {
		t.Fatalf("insert staging: %v", err)
	}
	cat := &models.CatalogProperty{PropertyDraft: sampleDraft("in-catalog", 300000), Status: models.CatalogAvailable}
	if err := store.InsertCatalog(ctx, cat); err != nil {
		t.Fatalf("insert catalog: %v", err)
	}

	found, err := store.FindExternalIDs(ctx, []string{"in-staging", "in-catalog", "unknown"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found["in-staging"] || !found["in-catalog"] || found["unknown"] {
		t.Fatalf("unexpected result %v", found)
	}

	inCatalog, err := store.CatalogExternalIDs(ctx, []string{"in-staging", "in-catalog"})
	if err != nil {
		t.Fatalf("catalog ids: %v", err)
	}
	if inCatalog["in-staging"] || !inCatalog["in-catalog"] {
		t.Fatalf("unexpected catalog result %v", inCatalog)
	}
}

func TestSQLiteStore_CatalogListing(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	cheap := &models.CatalogProperty{PropertyDraft: sampleDraft("c-1", 90000), Status: models.CatalogAvailable}
	mid := &models.CatalogProperty{PropertyDraft: sampleDraft("c-2", 150000), Status: models.CatalogAvailable}
	sold := &models.CatalogProperty{PropertyDraft: sampleDraft("c-3", 120000), Status: models.CatalogAvailable}
	for _, p := range []*models.CatalogProperty{cheap, mid, sold} {
		if err := store.InsertCatalog(ctx, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	soldAt := time.Now()
	if err := store.UpdateCatalogStatus(ctx, sold.ID, models.CatalogSold, &soldAt); err != nil {
		t.Fatalf("mark sold: %v", err)
	}

	list, err := store.ListCatalog(ctx, models.CatalogFilter{Sort: models.SortPriceAsc})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ExternalID != "c-1" || list[1].ExternalID != "c-2" {
		t.Fatalf("expected available properties by price, got %d", len(list))
	}

	list, err = store.ListCatalog(ctx, models.CatalogFilter{Sort: models.SortPriceAsc, ShowSold: true})
	if err != nil {
		t.Fatalf("list with sold: %v", err)
	}
	if len(list) != 3 || list[2].ExternalID != "c-3" {
		t.Fatalf("expected sold property last")
	}
	if list[2].SoldAt == nil {
		t.Fatalf("expected sold_at set")
	}

	list, err = store.ListCatalog(ctx, models.CatalogFilter{PriceRange: "100000-200000"})
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if len(list) != 1 || list[0].ExternalID != "c-2" {
		t.Fatalf("expected only c-2 in range")
	}

	list, err = store.ListCatalog(ctx, models.CatalogFilter{SoldOnly: true})
	if err != nil {
		t.Fatalf("list sold: %v", err)
	}
	if len(list) != 1 || list[0].ID != sold.ID {
		t.Fatalf("expected only the sold property")
	}

	if err := store.UpdateCatalogStatus(ctx, uuid.New(), models.CatalogSold, &soldAt); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_DeleteCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	var ids []uuid.UUID
	for _, ext := range []string{"d-1", "d-2", "d-3"} {
		rec := models.NewStagingRecord(sampleDraft(ext, 200000), nil)
		if err := store.InsertStaging(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	ok, err := store.DeleteStaging(ctx, ids[0])
	if err != nil || !ok {
		t.Fatalf("expected delete, got %v %v", ok, err)
	}
	n, err := store.DeleteStagingBulk(ctx, []uuid.UUID{ids[0], ids[1]})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 bulk delete, got %d %v", n, err)
	}
	n, err = store.DeleteStagingAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 remaining delete, got %d %v", n, err)
	}
}

func TestSQLiteStore_RunsAndConfigs(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	cfg := &models.ScrapingConfig{
		ID:            "caixa-ne",
		Name:          "Caixa Nordeste",
		Source:        "caixa",
		States:        []string{"CE", "PE"},
		PropertyTypes: []models.PropertyType{models.TypeHouse},
		IsActive:      true,
	}
	if err := store.UpsertScrapingConfig(ctx, cfg); err != nil {
		t.Fatalf("upsert config: %v", err)
	}
	now := time.Now()
	if err := store.TouchScrapingConfig(ctx, cfg.ID, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := store.GetScrapingConfig(ctx, cfg.ID)
	if err != nil || got == nil {
		t.Fatalf("get config: %v", err)
	}
	if len(got.States) != 2 || got.PropertyTypes[0] != models.TypeHouse || got.LastRunAt == nil {
		t.Fatalf("unexpected config %+v", got)
	}

	run, err := store.StartRun(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.PropertiesFound = 12
	run.PropertiesNew = 3
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.ListRuns(ctx, cfg.ID, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome() != models.OutcomeNew {
		t.Fatalf("unexpected runs %+v", runs)
	}

	if err := store.Log(ctx, &models.ScrapeLog{RunID: &run.ID, Level: models.LogLevelInfo, Message: "done", ConfigID: cfg.ID}); err != nil {
		t.Fatalf("log: %v", err)
	}
	other := uuid.New()
	if err := store.Log(ctx, &models.ScrapeLog{RunID: &other, Level: models.LogLevelWarn, Message: "elsewhere"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	logs, err := store.ListLogs(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "done" || logs[0].ConfigID != cfg.ID {
		t.Fatalf("expected the run's single entry, got %+v", logs)
	}
}

func TestSQLiteStore_FinishRunKeepsClosedRun(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	run, err := store.StartRun(ctx, "caixa")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.PropertiesFound = 7
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	late := *run
	late.Status = models.RunStatusFailed
	late.PropertiesFound = 0
	if err := store.FinishRun(ctx, &late); err != nil {
		t.Fatalf("second finish: %v", err)
	}

	runs, err := store.ListRuns(ctx, "caixa", 1)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunStatusCompleted || runs[0].PropertiesFound != 7 {
		t.Fatalf("expected the completed run untouched, got %+v", runs)
	}
}

func TestSQLiteStore_Commands(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	id, err := store.EnqueueCommand(ctx, models.CmdCrawl, models.CommandParams{ConfigID: "caixa-ne", States: []string{"CE"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cmds, err := store.GetPendingCommands(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(cmds) != 1 || cmds[0].ID != id || cmds[0].Command != models.CmdCrawl {
		t.Fatalf("unexpected commands %+v", cmds)
	}

	params, err := ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params.ConfigID != "caixa-ne" || len(params.States) != 1 {
		t.Fatalf("unexpected params %+v", params)
	}

	if err := store.MarkCommandProcessed(ctx, id, "ok"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, _ = store.GetPendingCommands(ctx)
	if len(cmds) != 0 {
		t.Fatalf("expected no pending commands, got %d", len(cmds))
	}
}
