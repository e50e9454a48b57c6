// Package storage persists staging records, catalog properties, crawl
// configs and run history, and uploads media to a blob store.
//
// Lookups that find nothing return nil with a nil error. Callers translate
// that to models.ErrNotFound where it matters.
package storage

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"caixa_scrooper/models"
)

type Store interface {
	// FindExternalIDs reports which of ids already exist in staging or the
	// catalog, in a single query.
	FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)
	CatalogExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)

	InsertStaging(ctx context.Context, rec *models.StagingRecord) error
	GetStaging(ctx context.Context, id uuid.UUID) (*models.StagingRecord, error)
	ListStaging(ctx context.Context, status models.StagingStatus) ([]models.StagingRecord, error)
	// UpdateStagingStatus only moves a pending record. Any other current
	// state yields models.ErrInvalidTransition.
	UpdateStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus, reviewedAt time.Time) error
	DeleteStaging(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteStagingBulk(ctx context.Context, ids []uuid.UUID) (int, error)
	DeleteStagingAll(ctx context.Context) (int, error)

	InsertCatalog(ctx context.Context, p *models.CatalogProperty) error
	GetCatalog(ctx context.Context, id uuid.UUID) (*models.CatalogProperty, error)
	ListCatalog(ctx context.Context, f models.CatalogFilter) ([]models.CatalogProperty, error)
	UpdateCatalogStatus(ctx context.Context, id uuid.UUID, status models.CatalogStatus, soldAt *time.Time) error
	DeleteCatalog(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteCatalogAll(ctx context.Context) (int, error)

	GetScrapingConfig(ctx context.Context, id string) (*models.ScrapingConfig, error)
	ListScrapingConfigs(ctx context.Context) ([]models.ScrapingConfig, error)
	UpsertScrapingConfig(ctx context.Context, c *models.ScrapingConfig) error
	TouchScrapingConfig(ctx context.Context, id string, at time.Time) error

	StartRun(ctx context.Context, configID string) (*models.ScrapingRun, error)
	// FinishRun records the final counters of a running run. A run that is
	// already completed or failed is left untouched.
	FinishRun(ctx context.Context, run *models.ScrapingRun) error
	ListRuns(ctx context.Context, configID string, limit int) ([]models.ScrapingRun, error)

	Log(ctx context.Context, entry *models.ScrapeLog) error
	// ListLogs returns the entries of one run, oldest first.
	ListLogs(ctx context.Context, runID uuid.UUID, limit int) ([]models.ScrapeLog, error)

	Close() error
}

// CommandQueue is the operator command table polled by the daemon.
type CommandQueue interface {
	EnqueueCommand(ctx context.Context, cmd models.CommandType, params any) (int64, error)
	GetPendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64, result string) error
}

// BlobStore uploads an object and returns the URL it is reachable at.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// ParseCommandParams decodes a command's JSON params. Empty params decode to
// the zero value.
func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var params models.CommandParams
	if len(cmd.Params) == 0 || string(cmd.Params) == "null" {
		return &params, nil
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func sortCatalog(sort models.SortOrder) string {
	switch sort {
	case models.SortPriceAsc:
		return "price ASC"
	case models.SortPriceDesc:
		return "price DESC"
	case models.SortDiscount:
		return "COALESCE(discount, 0) DESC"
	default:
		return "created_at DESC"
	}
}
