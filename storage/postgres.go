package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"caixa_scrooper/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS staging_properties (
	id UUID PRIMARY KEY,
	external_id TEXT UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'house',
	price NUMERIC NOT NULL DEFAULT 0,
	original_price NUMERIC,
	discount INTEGER,
	street TEXT,
	neighborhood TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zipcode TEXT,
	bedrooms INTEGER,
	bathrooms INTEGER,
	parking_spaces INTEGER,
	area NUMERIC NOT NULL DEFAULT 0,
	land_area NUMERIC,
	description TEXT NOT NULL DEFAULT '',
	images JSONB NOT NULL DEFAULT '[]',
	accepts_fgts BOOLEAN NOT NULL DEFAULT FALSE,
	accepts_financing BOOLEAN NOT NULL DEFAULT FALSE,
	modality TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	auction_date TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	reviewed_at TIMESTAMPTZ,
	raw_data JSONB
);

CREATE TABLE IF NOT EXISTS properties (
	id UUID PRIMARY KEY,
	external_id TEXT UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'house',
	price NUMERIC NOT NULL DEFAULT 0,
	original_price NUMERIC,
	discount INTEGER,
	street TEXT,
	neighborhood TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zipcode TEXT,
	bedrooms INTEGER,
	bathrooms INTEGER,
	parking_spaces INTEGER,
	area NUMERIC NOT NULL DEFAULT 0,
	land_area NUMERIC,
	description TEXT NOT NULL DEFAULT '',
	images JSONB NOT NULL DEFAULT '[]',
	accepts_fgts BOOLEAN NOT NULL DEFAULT FALSE,
	accepts_financing BOOLEAN NOT NULL DEFAULT FALSE,
	modality TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	auction_date TEXT,
	status TEXT NOT NULL DEFAULT 'available',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	sold_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scraping_config (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	states TEXT[] NOT NULL DEFAULT '{}',
	property_types TEXT[] NOT NULL DEFAULT '{}',
	modalities TEXT[] NOT NULL DEFAULT '{}',
	min_price NUMERIC NOT NULL DEFAULT 0,
	max_price NUMERIC NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_run_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS scraping_runs (
	id UUID PRIMARY KEY,
	config_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	properties_found INTEGER NOT NULL DEFAULT 0,
	properties_new INTEGER NOT NULL DEFAULT 0,
	errors_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS scrape_logs (
	id BIGSERIAL PRIMARY KEY,
	run_id UUID,
	timestamp TIMESTAMPTZ NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	config_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_staging_status ON staging_properties(status, scraped_at);
CREATE INDEX IF NOT EXISTS idx_properties_state ON properties(state, status);
CREATE INDEX IF NOT EXISTS idx_runs_config ON scraping_runs(config_id, started_at);
CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
`

// Migrate creates the tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}

// pgDraftSelect mirrors draftColumns with the nullable text columns
// coalesced so they scan into plain strings.
const pgDraftSelect = `COALESCE(external_id, ''), title, type, price::float8, original_price::float8, discount,
	COALESCE(street, ''), neighborhood, city, state, COALESCE(zipcode, ''), bedrooms, bathrooms,
	parking_spaces, area::float8, land_area::float8, description, images, accepts_fgts,
	accepts_financing, modality, source_url, COALESCE(auction_date, '')`

func pgDraftArgs(d *models.PropertyDraft) []any {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return []any{
		nullIfEmpty(d.ExternalID), d.Title, string(d.Type), d.Price, d.OriginalPrice, d.Discount,
		nullIfEmpty(d.Address.Street), d.Address.Neighborhood, d.Address.City, d.Address.State,
		nullIfEmpty(d.Address.ZipCode), d.Bedrooms, d.Bathrooms, d.ParkingSpaces, d.Area, d.LandArea,
		d.Description, images, d.AcceptsFGTS, d.AcceptsFinancing, d.Modality, d.SourceURL,
		nullIfEmpty(d.AuctionDate),
	}
}

func pgDraftDest(d *models.PropertyDraft) []any {
	return []any{
		&d.ExternalID, &d.Title, &d.Type, &d.Price, &d.OriginalPrice, &d.Discount, &d.Address.Street,
		&d.Address.Neighborhood, &d.Address.City, &d.Address.State, &d.Address.ZipCode, &d.Bedrooms,
		&d.Bathrooms, &d.ParkingSpaces, &d.Area, &d.LandArea, &d.Description, &d.Images,
		&d.AcceptsFGTS, &d.AcceptsFinancing, &d.Modality, &d.SourceURL, &d.AuctionDate,
	}
}

// pgPlaceholders returns "$from, ..., $(from+n-1)".
func pgPlaceholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =============================================================================
// Dedup
// =============================================================================

func (s *PostgresStore) FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT external_id FROM staging_properties WHERE external_id = ANY($1)
		UNION
		SELECT external_id FROM properties WHERE external_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (s *PostgresStore) CatalogExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT external_id FROM properties WHERE external_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// =============================================================================
// Staging
// =============================================================================

func (s *PostgresStore) InsertStaging(ctx context.Context, rec *models.StagingRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	var raw any
	if len(rec.RawData) > 0 {
		raw = []byte(rec.RawData)
	}
	args := append([]any{rec.ID}, pgDraftArgs(&rec.PropertyDraft)...)
	args = append(args, string(rec.Status), rec.ScrapedAt, raw)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO staging_properties (id, `+draftColumns+`, status, scraped_at, raw_data)
		VALUES (`+pgPlaceholders(1, 27)+`)`, args...)
	if isPgUniqueViolation(err) {
		return models.ErrDuplicateExternalID
	}
	return err
}

func scanPgStaging(row pgx.Row) (*models.StagingRecord, error) {
	var rec models.StagingRecord
	var raw []byte
	dest := append([]any{&rec.ID}, pgDraftDest(&rec.PropertyDraft)...)
	dest = append(dest, &rec.Status, &rec.ScrapedAt, &rec.ReviewedAt, &raw)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if raw != nil {
		rec.RawData = raw
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	return &rec, nil
}

func (s *PostgresStore) GetStaging(ctx context.Context, id uuid.UUID) (*models.StagingRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, `+pgDraftSelect+`, status, scraped_at, reviewed_at, raw_data
		FROM staging_properties WHERE id = $1`, id)

	rec, err := scanPgStaging(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListStaging(ctx context.Context, status models.StagingStatus) ([]models.StagingRecord, error) {
	query := `SELECT id, ` + pgDraftSelect + `, status, scraped_at, reviewed_at, raw_data FROM staging_properties`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY scraped_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StagingRecord
	for rows.Next() {
		rec, err := scanPgStaging(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus, reviewedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE staging_properties SET status = $2, reviewed_at = $3
		WHERE id = $1 AND status = 'pending'`, id, string(status), reviewedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (s *PostgresStore) DeleteStaging(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM staging_properties WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteStagingBulk(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM staging_properties WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteStagingAll(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM staging_properties`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =============================================================================
// Catalog
// =============================================================================

func (s *PostgresStore) InsertCatalog(ctx context.Context, p *models.CatalogProperty) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	args := append([]any{p.ID}, pgDraftArgs(&p.PropertyDraft)...)
	args = append(args, string(p.Status), p.CreatedAt, p.UpdatedAt, p.SoldAt)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (id, `+draftColumns+`, status, created_at, updated_at, sold_at)
		VALUES (`+pgPlaceholders(1, 28)+`)`, args...)
	if isPgUniqueViolation(err) {
		return models.ErrDuplicateExternalID
	}
	return err
}

func scanPgCatalog(row pgx.Row) (*models.CatalogProperty, error) {
	var p models.CatalogProperty
	dest := append([]any{&p.ID}, pgDraftDest(&p.PropertyDraft)...)
	dest = append(dest, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.SoldAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func (s *PostgresStore) GetCatalog(ctx context.Context, id uuid.UUID) (*models.CatalogProperty, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, `+pgDraftSelect+`, status, created_at, updated_at, sold_at
		FROM properties WHERE id = $1`, id)

	p, err := scanPgCatalog(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) ListCatalog(ctx context.Context, f models.CatalogFilter) ([]models.CatalogProperty, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case f.SoldOnly:
		where = append(where, `status = 'sold'`)
	case !f.ShowSold:
		where = append(where, `status <> 'sold'`)
	}
	if f.State != "" {
		where = append(where, `UPPER(state) = `+arg(strings.ToUpper(f.State)))
	}
	if f.Type != "" {
		where = append(where, `type = `+arg(string(f.Type)))
	}
	if lo, hi, ok := f.PriceRange.Bounds(); ok {
		where = append(where, `price >= `+arg(lo))
		if hi > 0 {
			where = append(where, `price < `+arg(hi))
		}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		p := arg("%" + q + "%")
		where = append(where, `(title ILIKE `+p+` OR city ILIKE `+p+` OR neighborhood ILIKE `+p+`)`)
	}

	query := `SELECT id, ` + pgDraftSelect + `, status, created_at, updated_at, sold_at FROM properties`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.SoldOnly {
		query += ` ORDER BY sold_at DESC NULLS LAST`
	} else {
		query += ` ORDER BY (status = 'sold'), ` + sortCatalog(f.Sort)
	}
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CatalogProperty
	for rows.Next() {
		p, err := scanPgCatalog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCatalogStatus(ctx context.Context, id uuid.UUID, status models.CatalogStatus, soldAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE properties SET status = $2, sold_at = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), soldAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCatalog(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteCatalogAll(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM properties`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =============================================================================
// Configs
// =============================================================================

const pgConfigSelect = `id, name, source, states, property_types, modalities, min_price::float8, max_price::float8,
	is_active, last_run_at, created_at, updated_at`

func scanPgConfig(row pgx.Row) (*models.ScrapingConfig, error) {
	var c models.ScrapingConfig
	var types []string
	if err := row.Scan(&c.ID, &c.Name, &c.Source, &c.States, &types, &c.Modalities, &c.MinPrice,
		&c.MaxPrice, &c.IsActive, &c.LastRunAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	for _, t := range types {
		c.PropertyTypes = append(c.PropertyTypes, models.PropertyType(t))
	}
	return &c, nil
}

func (s *PostgresStore) GetScrapingConfig(ctx context.Context, id string) (*models.ScrapingConfig, error) {
	c, err := scanPgConfig(s.pool.QueryRow(ctx, `SELECT `+pgConfigSelect+` FROM scraping_config WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) ListScrapingConfigs(ctx context.Context) ([]models.ScrapingConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgConfigSelect+` FROM scraping_config ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScrapingConfig
	for rows.Next() {
		c, err := scanPgConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertScrapingConfig(ctx context.Context, c *models.ScrapingConfig) error {
	types := make([]string, len(c.PropertyTypes))
	for i, t := range c.PropertyTypes {
		types[i] = string(t)
	}
	states := c.States
	if states == nil {
		states = []string{}
	}
	modalities := c.Modalities
	if modalities == nil {
		modalities = []string{}
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO scraping_config (id, name, source, states, property_types, modalities, min_price, max_price,
			is_active, last_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			source = EXCLUDED.source,
			states = EXCLUDED.states,
			property_types = EXCLUDED.property_types,
			modalities = EXCLUDED.modalities,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			is_active = EXCLUDED.is_active,
			last_run_at = COALESCE(EXCLUDED.last_run_at, scraping_config.last_run_at),
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Source, states, types, modalities, c.MinPrice, c.MaxPrice, c.IsActive, c.LastRunAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) TouchScrapingConfig(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE scraping_config SET last_run_at = $2 WHERE id = $1`, id, at)
	return err
}

// =============================================================================
// Runs and logs
// =============================================================================

func (s *PostgresStore) StartRun(ctx context.Context, configID string) (*models.ScrapingRun, error) {
	run := &models.ScrapingRun{
		ID:        uuid.New(),
		ConfigID:  configID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scraping_runs (id, config_id, started_at, status) VALUES ($1, $2, $3, $4)`,
		run.ID, run.ConfigID, run.StartedAt, string(run.Status))
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *models.ScrapingRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scraping_runs SET
			finished_at = $2, status = $3, properties_found = $4, properties_new = $5,
			errors_count = $6, error_message = $7
		WHERE id = $1 AND status = 'running'`,
		run.ID, run.FinishedAt, string(run.Status), run.PropertiesFound, run.PropertiesNew,
		run.ErrorsCount, run.ErrorMessage)
	return err
}

func (s *PostgresStore) ListRuns(ctx context.Context, configID string, limit int) ([]models.ScrapingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, config_id, started_at, finished_at, status, properties_found, properties_new,
			errors_count, error_message
		FROM scraping_runs
		WHERE $1 = '' OR config_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, configID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScrapingRun
	for rows.Next() {
		var r models.ScrapingRun
		if err := rows.Scan(&r.ID, &r.ConfigID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.PropertiesFound,
			&r.PropertiesNew, &r.ErrorsCount, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Log(ctx context.Context, entry *models.ScrapeLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, config_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		entry.RunID, entry.Timestamp, string(entry.Level), entry.Message, entry.ConfigID,
	).Scan(&entry.ID)
}

func (s *PostgresStore) ListLogs(ctx context.Context, runID uuid.UUID, limit int) ([]models.ScrapeLog, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, level, message, COALESCE(config_id, '')
		FROM scrape_logs
		WHERE run_id = $1
		ORDER BY timestamp, id
		LIMIT $2`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScrapeLog
	for rows.Next() {
		l := models.ScrapeLog{RunID: &runID}
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.ConfigID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
