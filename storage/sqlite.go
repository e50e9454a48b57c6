package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"caixa_scrooper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staging_properties (
		id TEXT PRIMARY KEY,
		external_id TEXT UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'house',
		price REAL NOT NULL DEFAULT 0,
		original_price REAL,
		discount INTEGER,
		street TEXT,
		neighborhood TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zipcode TEXT,
		bedrooms INTEGER,
		bathrooms INTEGER,
		parking_spaces INTEGER,
		area REAL NOT NULL DEFAULT 0,
		land_area REAL,
		description TEXT NOT NULL DEFAULT '',
		images JSON,
		accepts_fgts BOOLEAN DEFAULT FALSE,
		accepts_financing BOOLEAN DEFAULT FALSE,
		modality TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		auction_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		scraped_at DATETIME,
		reviewed_at DATETIME,
		raw_data JSON
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		external_id TEXT UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'house',
		price REAL NOT NULL DEFAULT 0,
		original_price REAL,
		discount INTEGER,
		street TEXT,
		neighborhood TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zipcode TEXT,
		bedrooms INTEGER,
		bathrooms INTEGER,
		parking_spaces INTEGER,
		area REAL NOT NULL DEFAULT 0,
		land_area REAL,
		description TEXT NOT NULL DEFAULT '',
		images JSON,
		accepts_fgts BOOLEAN DEFAULT FALSE,
		accepts_financing BOOLEAN DEFAULT FALSE,
		modality TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		auction_date TEXT,
		status TEXT NOT NULL DEFAULT 'available',
		created_at DATETIME,
		updated_at DATETIME,
		sold_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS scraping_config (
		id TEXT PRIMARY KEY,
		name TEXT,
		source TEXT,
		states JSON,
		property_types JSON,
		modalities JSON,
		min_price REAL DEFAULT 0,
		max_price REAL DEFAULT 0,
		is_active BOOLEAN DEFAULT TRUE,
		last_run_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS scraping_runs (
		id TEXT PRIMARY KEY,
		config_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		properties_found INTEGER DEFAULT 0,
		properties_new INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		config_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME,
		result TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_staging_status ON staging_properties(status, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_properties_state ON properties(state, status);
	CREATE INDEX IF NOT EXISTS idx_runs_config ON scraping_runs(config_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

const draftColumns = `external_id, title, type, price, original_price, discount, street, neighborhood, city, state,
	zipcode, bedrooms, bathrooms, parking_spaces, area, land_area, description, images, accepts_fgts,
	accepts_financing, modality, source_url, auction_date`

func draftArgs(d *models.PropertyDraft) ([]any, error) {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}
	return []any{
		nullIfEmpty(d.ExternalID), d.Title, string(d.Type), d.Price, d.OriginalPrice, d.Discount,
		nullIfEmpty(d.Address.Street), d.Address.Neighborhood, d.Address.City, d.Address.State,
		nullIfEmpty(d.Address.ZipCode), d.Bedrooms, d.Bathrooms, d.ParkingSpaces, d.Area, d.LandArea,
		d.Description, string(imagesJSON), d.AcceptsFGTS, d.AcceptsFinancing, d.Modality, d.SourceURL,
		nullIfEmpty(d.AuctionDate),
	}, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// draftScan holds the nullable columns of a draft while a row is scanned.
type draftScan struct {
	externalID, street, zipcode, images, auctionDate sql.NullString
	originalPrice, landArea                          sql.NullFloat64
	discount, bedrooms, bathrooms, parking           sql.NullInt64
}

func (ds *draftScan) dest(d *models.PropertyDraft) []any {
	return []any{
		&ds.externalID, &d.Title, &d.Type, &d.Price, &ds.originalPrice, &ds.discount, &ds.street,
		&d.Address.Neighborhood, &d.Address.City, &d.Address.State, &ds.zipcode, &ds.bedrooms,
		&ds.bathrooms, &ds.parking, &d.Area, &ds.landArea, &d.Description, &ds.images,
		&d.AcceptsFGTS, &d.AcceptsFinancing, &d.Modality, &d.SourceURL, &ds.auctionDate,
	}
}

func (ds *draftScan) apply(d *models.PropertyDraft) {
	d.ExternalID = ds.externalID.String
	d.Address.Street = ds.street.String
	d.Address.ZipCode = ds.zipcode.String
	d.AuctionDate = ds.auctionDate.String
	d.OriginalPrice = nullFloat(ds.originalPrice)
	d.LandArea = nullFloat(ds.landArea)
	d.Discount = nullInt(ds.discount)
	d.Bedrooms = nullInt(ds.bedrooms)
	d.Bathrooms = nullInt(ds.bathrooms)
	d.ParkingSpaces = nullInt(ds.parking)
	d.Images = []string{}
	if ds.images.Valid && ds.images.String != "" {
		_ = json.Unmarshal([]byte(ds.images.String), &d.Images)
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// =============================================================================
// Dedup
// =============================================================================

func (s *SQLiteStore) FindExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	ph := placeholders(len(ids))
	args := append(stringArgs(ids), stringArgs(ids)...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id FROM staging_properties WHERE external_id IN (`+ph+`)
		UNION
		SELECT external_id FROM properties WHERE external_id IN (`+ph+`)`, args...)
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

func (s *SQLiteStore) CatalogExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id FROM properties WHERE external_id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
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

func (s *SQLiteStore) InsertStaging(ctx context.Context, rec *models.StagingRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	args, err := draftArgs(&rec.PropertyDraft)
	if err != nil {
		return err
	}
	var raw any
	if len(rec.RawData) > 0 {
		raw = string(rec.RawData)
	}
	args = append([]any{rec.ID.String()}, args...)
	args = append(args, string(rec.Status), rec.ScrapedAt, raw)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staging_properties (id, `+draftColumns+`, status, scraped_at, raw_data)
		VALUES (?, `+placeholders(23)+`, ?, ?, ?)`, args...)
	if isUniqueViolation(err) {
		return models.ErrDuplicateExternalID
	}
	return err
}

func (s *SQLiteStore) scanStaging(scan func(...any) error) (*models.StagingRecord, error) {
	var rec models.StagingRecord
	var ds draftScan
	var reviewed sql.NullTime
	var raw sql.NullString

	dest := append([]any{&rec.ID}, ds.dest(&rec.PropertyDraft)...)
	dest = append(dest, &rec.Status, &rec.ScrapedAt, &reviewed, &raw)
	if err := scan(dest...); err != nil {
		return nil, err
	}
	ds.apply(&rec.PropertyDraft)
	rec.ReviewedAt = nullTime(reviewed)
	if raw.Valid {
		rec.RawData = json.RawMessage(raw.String)
	}
	return &rec, nil
}

func (s *SQLiteStore) GetStaging(ctx context.Context, id uuid.UUID) (*models.StagingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, `+draftColumns+`, status, scraped_at, reviewed_at, raw_data
		FROM staging_properties WHERE id = ?`, id.String())

	rec, err := s.scanStaging(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) ListStaging(ctx context.Context, status models.StagingStatus) ([]models.StagingRecord, error) {
	query := `SELECT id, ` + draftColumns + `, status, scraped_at, reviewed_at, raw_data FROM staging_properties`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY scraped_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StagingRecord
	for rows.Next() {
		rec, err := s.scanStaging(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateStagingStatus(ctx context.Context, id uuid.UUID, status models.StagingStatus, reviewedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staging_properties SET status = ?, reviewed_at = ?
		WHERE id = ? AND status = 'pending'`, string(status), reviewedAt, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (s *SQLiteStore) DeleteStaging(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staging_properties WHERE id = ?`, id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) DeleteStagingBulk(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM staging_properties WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) DeleteStagingAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staging_properties`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// Catalog
// =============================================================================

func (s *SQLiteStore) InsertCatalog(ctx context.Context, p *models.CatalogProperty) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	args, err := draftArgs(&p.PropertyDraft)
	if err != nil {
		return err
	}
	args = append([]any{p.ID.String()}, args...)
	args = append(args, string(p.Status), p.CreatedAt, p.UpdatedAt, p.SoldAt)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (id, `+draftColumns+`, status, created_at, updated_at, sold_at)
		VALUES (?, `+placeholders(23)+`, ?, ?, ?, ?)`, args...)
	if isUniqueViolation(err) {
		return models.ErrDuplicateExternalID
	}
	return err
}

func (s *SQLiteStore) scanCatalog(scan func(...any) error) (*models.CatalogProperty, error) {
	var p models.CatalogProperty
	var ds draftScan
	var sold sql.NullTime

	dest := append([]any{&p.ID}, ds.dest(&p.PropertyDraft)...)
	dest = append(dest, &p.Status, &p.CreatedAt, &p.UpdatedAt, &sold)
	if err := scan(dest...); err != nil {
		return nil, err
	}
	ds.apply(&p.PropertyDraft)
	p.SoldAt = nullTime(sold)
	return &p, nil
}

func (s *SQLiteStore) GetCatalog(ctx context.Context, id uuid.UUID) (*models.CatalogProperty, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, `+draftColumns+`, status, created_at, updated_at, sold_at
		FROM properties WHERE id = ?`, id.String())

	p, err := s.scanCatalog(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListCatalog(ctx context.Context, f models.CatalogFilter) ([]models.CatalogProperty, error) {
	var where []string
	var args []any

	switch {
	case f.SoldOnly:
		where = append(where, `status = 'sold'`)
	case !f.ShowSold:
		where = append(where, `status <> 'sold'`)
	}
	if f.State != "" {
		where = append(where, `UPPER(state) = ?`)
		args = append(args, strings.ToUpper(f.State))
	}
	if f.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, string(f.Type))
	}
	if lo, hi, ok := f.PriceRange.Bounds(); ok {
		where = append(where, `price >= ?`)
		args = append(args, lo)
		if hi > 0 {
			where = append(where, `price < ?`)
			args = append(args, hi)
		}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(title) LIKE ? OR LOWER(city) LIKE ? OR LOWER(neighborhood) LIKE ?)`)
		args = append(args, like, like, like)
	}

	query := `SELECT id, ` + draftColumns + `, status, created_at, updated_at, sold_at FROM properties`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.SoldOnly {
		query += ` ORDER BY sold_at DESC`
	} else {
		query += ` ORDER BY (status = 'sold'), ` + sortCatalog(f.Sort)
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CatalogProperty
	for rows.Next() {
		p, err := s.scanCatalog(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateCatalogStatus(ctx context.Context, id uuid.UUID, status models.CatalogStatus, soldAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties SET status = ?, sold_at = ?, updated_at = ? WHERE id = ?`,
		string(status), soldAt, time.Now(), id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteCatalog(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) DeleteCatalogAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM properties`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// Configs
// =============================================================================

func (s *SQLiteStore) scanConfig(scan func(...any) error) (*models.ScrapingConfig, error) {
	var c models.ScrapingConfig
	var states, types, modalities sql.NullString
	var lastRun sql.NullTime
	if err := scan(&c.ID, &c.Name, &c.Source, &states, &types, &modalities, &c.MinPrice, &c.MaxPrice,
		&c.IsActive, &lastRun, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if states.Valid {
		_ = json.Unmarshal([]byte(states.String), &c.States)
	}
	if types.Valid {
		_ = json.Unmarshal([]byte(types.String), &c.PropertyTypes)
	}
	if modalities.Valid {
		_ = json.Unmarshal([]byte(modalities.String), &c.Modalities)
	}
	c.LastRunAt = nullTime(lastRun)
	return &c, nil
}

const configColumns = `id, name, source, states, property_types, modalities, min_price, max_price, is_active,
	last_run_at, created_at, updated_at`

func (s *SQLiteStore) GetScrapingConfig(ctx context.Context, id string) (*models.ScrapingConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM scraping_config WHERE id = ?`, id)
	c, err := s.scanConfig(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStore) ListScrapingConfigs(ctx context.Context) ([]models.ScrapingConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configColumns+` FROM scraping_config ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScrapingConfig
	for rows.Next() {
		c, err := s.scanConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertScrapingConfig(ctx context.Context, c *models.ScrapingConfig) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	states, _ := json.Marshal(c.States)
	types, _ := json.Marshal(c.PropertyTypes)
	modalities, _ := json.Marshal(c.Modalities)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_config (`+configColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			states = excluded.states,
			property_types = excluded.property_types,
			modalities = excluded.modalities,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			is_active = excluded.is_active,
			last_run_at = COALESCE(excluded.last_run_at, last_run_at),
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Source, string(states), string(types), string(modalities), c.MinPrice, c.MaxPrice,
		c.IsActive, c.LastRunAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *SQLiteStore) TouchScrapingConfig(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scraping_config SET last_run_at = ? WHERE id = ?`, at, id)
	return err
}

// =============================================================================
// Runs and logs
// =============================================================================

func (s *SQLiteStore) StartRun(ctx context.Context, configID string) (*models.ScrapingRun, error) {
	run := &models.ScrapingRun{
		ID:        uuid.New(),
		ConfigID:  configID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_runs (id, config_id, started_at, status)
		VALUES (?, ?, ?, ?)`, run.ID.String(), run.ConfigID, run.StartedAt, string(run.Status))
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.ScrapingRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scraping_runs SET finished_at = ?, status = ?, properties_found = ?, properties_new = ?,
			errors_count = ?, error_message = ?
		WHERE id = ? AND status = 'running'`,
		run.FinishedAt, string(run.Status), run.PropertiesFound, run.PropertiesNew, run.ErrorsCount,
		run.ErrorMessage, run.ID.String())
	return err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, configID string, limit int) ([]models.ScrapingRun, error) {
	query := `SELECT id, config_id, started_at, finished_at, status, properties_found, properties_new,
		errors_count, error_message FROM scraping_runs`
	var args []any
	if configID != "" {
		query += ` WHERE config_id = ?`
		args = append(args, configID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScrapingRun
	for rows.Next() {
		var r models.ScrapingRun
		var finished sql.NullTime
		var msg sql.NullString
		if err := rows.Scan(&r.ID, &r.ConfigID, &r.StartedAt, &finished, &r.Status, &r.PropertiesFound,
			&r.PropertiesNew, &r.ErrorsCount, &msg); err != nil {
			return nil, err
		}
		r.FinishedAt = nullTime(finished)
		if msg.Valid {
			r.ErrorMessage = &msg.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Log(ctx context.Context, entry *models.ScrapeLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	var runID any
	if entry.RunID != nil {
		runID = entry.RunID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, config_id)
		VALUES (?, ?, ?, ?, ?)`, runID, entry.Timestamp, string(entry.Level), entry.Message, entry.ConfigID)
	return err
}

func (s *SQLiteStore) ListLogs(ctx context.Context, runID uuid.UUID, limit int) ([]models.ScrapeLog, error) {
	query := `SELECT id, timestamp, level, message, COALESCE(config_id, '') FROM scrape_logs
		WHERE run_id = ? ORDER BY timestamp, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, runID.String())
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

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params any) (int64, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		string(cmd), string(raw), time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &processed); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmd.ProcessedAt = nullTime(processed)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(ctx context.Context, id int64, result string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE commands SET processed_at = ?, result = ? WHERE id = ?`, time.Now(), result, id)
	return err
}
