package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"caixa_scrooper/models"
)

// MemoryStore keeps everything in process. The Fail* hooks let tests make a
// single operation fail.
type MemoryStore struct {
	mu       sync.Mutex
	staging  map[uuid.UUID]*models.StagingRecord
	catalog  map[uuid.UUID]*models.CatalogProperty
	configs  map[string]*models.ScrapingConfig
	runs     []*models.ScrapingRun
	logs     []models.ScrapeLog
	commands []*models.Command
	nextCmd  int64

	FailInsertStaging   error
	FailUpdateStaging   error
	FailInsertCatalog   error
	FailFindExternalIDs error

	// FailInsertCatalogFor fails catalog inserts of the listed external ids.
	FailInsertCatalogFor map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		staging: make(map[uuid.UUID]*models.StagingRecord),
		catalog: make(map[uuid.UUID]*models.CatalogProperty),
		configs: make(map[string]*models.ScrapingConfig),
	}
}

func (s *MemoryStore) Close() error { return nil }

// =============================================================================
// Dedup
// =============================================================================

func (s *MemoryStore) FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFindExternalIDs != nil {
		return nil, s.FailFindExternalIDs
	}

	want := toSet(ids)
	found := make(map[string]bool)
	for _, r := range s.staging {
		if want[r.ExternalID] {
			found[r.ExternalID] = true
		}
	}
	for _, p := range s.catalog {
		if want[p.ExternalID] {
			found[p.ExternalID] = true
		}
	}
	return found, nil
}

func (s *MemoryStore) CatalogExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := toSet(ids)
	found := make(map[string]bool)
	for _, p := range s.catalog {
		if want[p.ExternalID] {
			found[p.ExternalID] = true
		}
	}
	return found, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// =============================================================================
// Staging
// =============================================================================

func (s *MemoryStore) InsertStaging(ctx context.Context, rec *models.StagingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertStaging != nil {
		return s.FailInsertStaging
	}

	for _, r := range s.staging {
		if rec.ExternalID != "" && r.ExternalID == rec.ExternalID {
			return models.ErrDuplicateExternalID
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	s.staging[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) GetStaging(ctx context.Context, id uuid.UUID) (*models.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.staging[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListStaging(ctx context.Context, status models.StagingStatus) ([]models.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.StagingRecord
	for _, r := range s.staging {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScrapedAt.After(out[j].ScrapedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdateStaging != nil {
		return s.FailUpdateStaging
	}

	r, ok := s.staging[id]
	if !ok || r.Status != models.StagingPending {
		return models.ErrInvalidTransition
	}
	r.Status = status
	r.ReviewedAt = &reviewedAt
	return nil
}

func (s *MemoryStore) DeleteStaging(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.staging[id]
	delete(s.staging, id)
	return ok, nil
}

func (s *MemoryStore) DeleteStagingBulk(ctx context.Context, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := s.staging[id]; ok {
			delete(s.staging, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteStagingAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.staging)
	s.staging = make(map[uuid.UUID]*models.StagingRecord)
	return n, nil
}

// =============================================================================
// Catalog
// =============================================================================

func (s *MemoryStore) InsertCatalog(ctx context.Context, p *models.CatalogProperty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertCatalog != nil {
		return s.FailInsertCatalog
	}
	if err := s.FailInsertCatalogFor[p.ExternalID]; err != nil {
		return err
	}

	for _, c := range s.catalog {
		if p.ExternalID != "" && c.ExternalID == p.ExternalID {
			return models.ErrDuplicateExternalID
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	s.catalog[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCatalog(ctx context.Context, id uuid.UUID) (*models.CatalogProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.catalog[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListCatalog(ctx context.Context, f models.CatalogFilter) ([]models.CatalogProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CatalogProperty
	for _, p := range s.catalog {
		if matchesCatalog(p, f) {
			out = append(out, *p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.SoldOnly {
			return soldTime(a).After(soldTime(b))
		}
		if (a.Status == models.CatalogSold) != (b.Status == models.CatalogSold) {
			return a.Status != models.CatalogSold
		}
		switch f.Sort {
		case models.SortPriceAsc:
			return a.Price < b.Price
		case models.SortPriceDesc:
			return a.Price > b.Price
		case models.SortDiscount:
			return derefInt(a.Discount) > derefInt(b.Discount)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesCatalog(p *models.CatalogProperty, f models.CatalogFilter) bool {
	if f.SoldOnly && p.Status != models.CatalogSold {
		return false
	}
	if !f.SoldOnly && !f.ShowSold && p.Status == models.CatalogSold {
		return false
	}
	if f.State != "" && !strings.EqualFold(p.Address.State, f.State) {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if lo, hi, ok := f.PriceRange.Bounds(); ok {
		if p.Price < lo || (hi > 0 && p.Price >= hi) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(p.Title + " " + p.Address.City + " " + p.Address.Neighborhood)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func soldTime(p models.CatalogProperty) time.Time {
	if p.SoldAt == nil {
		return time.Time{}
	}
	return *p.SoldAt
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (s *MemoryStore) UpdateCatalogStatus(ctx context.Context, id uuid.UUID, status models.CatalogStatus, soldAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.catalog[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Status = status
	p.SoldAt = soldAt
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteCatalog(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.catalog[id]
	delete(s.catalog, id)
	return ok, nil
}

func (s *MemoryStore) DeleteCatalogAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.catalog)
	s.catalog = make(map[uuid.UUID]*models.CatalogProperty)
	return n, nil
}

// =============================================================================
// Configs and runs
// =============================================================================

func (s *MemoryStore) GetScrapingConfig(ctx context.Context, id string) (*models.ScrapingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.configs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListScrapingConfigs(ctx context.Context) ([]models.ScrapingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ScrapingConfig, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertScrapingConfig(ctx context.Context, c *models.ScrapingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.configs[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
		if c.LastRunAt == nil {
			c.LastRunAt = existing.LastRunAt
		}
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	s.configs[c.ID] = &cp
	return nil
}

func (s *MemoryStore) TouchScrapingConfig(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.configs[id]; ok {
		c.LastRunAt = &at
	}
	return nil
}

func (s *MemoryStore) StartRun(ctx context.Context, configID string) (*models.ScrapingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &models.ScrapingRun{
		ID:        uuid.New(),
		ConfigID:  configID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	cp := *run
	s.runs = append(s.runs, &cp)
	return run, nil
}

func (s *MemoryStore) FinishRun(ctx context.Context, run *models.ScrapingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.runs {
		if r.ID == run.ID {
			if r.Status != models.RunStatusRunning {
				return nil
			}
			cp := *run
			s.runs[i] = &cp
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *MemoryStore) ListRuns(ctx context.Context, configID string, limit int) ([]models.ScrapingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScrapingRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if configID != "" && s.runs[i].ConfigID != configID {
			continue
		}
		out = append(out, *s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Log(ctx context.Context, entry *models.ScrapeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, runID uuid.UUID, limit int) ([]models.ScrapeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScrapeLog
	for _, l := range s.logs {
		if l.RunID == nil || *l.RunID != runID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *MemoryStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params any) (int64, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCmd++
	s.commands = append(s.commands, &models.Command{
		ID:        s.nextCmd,
		Command:   cmd,
		Params:    raw,
		CreatedAt: time.Now(),
	})
	return s.nextCmd, nil
}

func (s *MemoryStore) GetPendingCommands(ctx context.Context) ([]models.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Command
	for _, c := range s.commands {
		if c.ProcessedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkCommandProcessed(ctx context.Context, id int64, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.commands {
		if c.ID == id {
			now := time.Now()
			c.ProcessedAt = &now
			c.Result = result
			return nil
		}
	}
	return models.ErrNotFound
}

// Commands returns every queued command, processed or not, in queue order.
func (s *MemoryStore) Commands() []models.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Command, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, *c)
	}
	return out
}
