package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"caixa_scrooper/config"
	"caixa_scrooper/extract"
	"caixa_scrooper/identity"
	"caixa_scrooper/logging"
	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

type Orchestrator struct {
	cfg     *config.Config
	store   storage.Store
	fetcher Fetcher
	paused  atomic.Bool

	mu      sync.Mutex
	running map[string]bool
}

func NewOrchestrator(cfg *config.Config, store storage.Store, fetcher Fetcher) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		running: make(map[string]bool),
	}
}

// EnsureDefaultConfigs creates an active scraping config for every loaded
// source that has none yet.
func (o *Orchestrator) EnsureDefaultConfigs(ctx context.Context) error {
	for id, src := range o.cfg.Sources {
		existing, err := o.store.GetScrapingConfig(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		sc := &models.ScrapingConfig{
			ID:       id,
			Name:     src.Name,
			Source:   id,
			States:   src.DefaultStates,
			IsActive: true,
		}
		if err := o.store.UpsertScrapingConfig(ctx, sc); err != nil {
			return err
		}
		log.Printf("Created default scraping config %s", id)
	}
	return nil
}

// RunAll runs every active config in turn. It does nothing while paused.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused.Load() {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	configs, err := o.store.ListScrapingConfigs(ctx)
	if err != nil {
		return err
	}
	for _, sc := range configs {
		if !sc.IsActive {
			continue
		}
		if _, err := o.RunConfig(ctx, sc.ID, nil); err != nil {
			log.Printf("Error running config %s: %v", sc.ID, err)
		}
	}
	return nil
}

// RunConfig crawls the seeds of a config's source and stages every new
// listing that passes the config's filters. states overrides the config's
// own state list when non-empty. The returned run is always closed; err is
// the reason it failed.
func (o *Orchestrator) RunConfig(ctx context.Context, configID string, states []string) (*models.ScrapingRun, error) {
	c, err := o.begin(ctx, configID, states)
	if err != nil {
		return nil, err
	}
	defer o.release(configID)

	err = c.execute(ctx, func(ctx context.Context) error {
		c.logf(models.LogLevelInfo, "Starting crawl of %s for %s", c.src.Name, strings.Join(c.stateList, ","))

		links, reachable, lastErr := c.collect(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !reachable && lastErr != nil {
			return fmt.Errorf("no source page could be fetched: %w", lastErr)
		}

		c.run.PropertiesFound = len(links)
		c.logf(models.LogLevelInfo, "Collected %d listing links", len(links))
		return c.process(ctx, links)
	})
	return c.run, err
}

// RunManualURL fetches one operator-supplied URL and handles it as an index
// page when it carries listing links, or as a single listing otherwise. A
// page that is neither fails the run with models.ErrUnrecognizedPage.
func (o *Orchestrator) RunManualURL(ctx context.Context, configID, rawURL string, states []string) (*models.ScrapingRun, error) {
	c, err := o.begin(ctx, configID, states)
	if err != nil {
		return nil, err
	}
	defer o.release(configID)

	rawURL = strings.TrimSpace(rawURL)
	err = c.execute(ctx, func(ctx context.Context) error {
		c.logf(models.LogLevelInfo, "Fetching manual URL %s", rawURL)

		html, err := c.fetchIndex(ctx, rawURL)
		if err != nil {
			return err
		}

		// A detail URL is never treated as an index, even though detail
		// pages link to similar listings.
		link := Link{URL: rawURL}
		id, isDetail := c.links.ExternalID(rawURL)
		if !isDetail {
			if links := c.links.Links(html, rawURL, c.states); len(links) > 0 {
				c.run.PropertiesFound = len(links)
				c.logf(models.LogLevelInfo, "Index page: %d listing links", len(links))
				return c.process(ctx, links)
			}
			id = identity.ExternalIDFromURL(rawURL)
		}
		link.ExternalID = id
		link.City, link.State = c.links.Location(rawURL)

		draft, err := extract.HTML(html, c.hints(link))
		if err != nil {
			if errors.Is(err, models.ErrExtractionFailed) {
				return fmt.Errorf("%s: %w", rawURL, models.ErrUnrecognizedPage)
			}
			return err
		}

		c.run.PropertiesFound = 1
		c.logf(models.LogLevelInfo, "Detail page: %s", draft.Title)

		idx, err := LoadDedupIndex(ctx, o.store, []string{draft.ExternalID})
		if err != nil {
			return err
		}
		if idx.Contains(draft.ExternalID) {
			c.logf(models.LogLevelInfo, "Listing %s is already known", draft.ExternalID)
			return nil
		}
		c.stage(ctx, idx, draft)
		return nil
	})
	return c.run, err
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := storage.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdCrawl:
		if params.ConfigID == "" {
			return o.RunAll(ctx)
		}
		_, err := o.RunConfig(ctx, params.ConfigID, params.States)
		return err
	case models.CmdCrawlURL:
		configID := params.ConfigID
		if configID == "" {
			configID = config.DefaultSourceID
		}
		_, err := o.RunManualURL(ctx, configID, params.URL, params.States)
		return err
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Scraper resumed")
	default:
		return fmt.Errorf("unsupported command: %s", cmd.Command)
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	o.mu.Lock()
	running := make([]string, 0, len(o.running))
	for id := range o.running {
		running = append(running, id)
	}
	o.mu.Unlock()
	sort.Strings(running)

	var sources []string
	for id := range o.cfg.Sources {
		sources = append(sources, id)
	}
	sort.Strings(sources)

	status := map[string]interface{}{
		"paused":  o.IsPaused(),
		"running": running,
		"sources": sources,
	}
	return json.Marshal(status)
}

func (o *Orchestrator) acquire(configID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[configID] {
		return false
	}
	o.running[configID] = true
	return true
}

func (o *Orchestrator) release(configID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, configID)
}

// begin resolves the config and its source and claims the config. The
// caller must release it.
func (o *Orchestrator) begin(ctx context.Context, configID string, states []string) (*crawl, error) {
	sc, err := o.store.GetScrapingConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, fmt.Errorf("scraping config %s: %w", configID, models.ErrNotFound)
	}

	sourceID := sc.Source
	if sourceID == "" {
		sourceID = config.DefaultSourceID
	}
	src, ok := o.cfg.Sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", sourceID)
	}
	links, err := NewLinkExtractor(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, err)
	}

	if !o.acquire(configID) {
		return nil, fmt.Errorf("config %s: %w", configID, models.ErrRunInProgress)
	}

	c := &crawl{o: o, sc: sc, src: src, links: links}
	c.setStates(states)
	return c, nil
}

// crawl is the state of one run.
type crawl struct {
	o     *Orchestrator
	sc    *models.ScrapingConfig
	src   *config.SourceConfig
	links *LinkExtractor

	states    map[string]bool
	stateList []string

	mu  sync.Mutex // guards run counters during concurrent batches
	run *models.ScrapingRun
}

func (c *crawl) setStates(override []string) {
	list := override
	if len(list) == 0 {
		list = c.sc.States
	}
	if len(list) == 0 {
		list = c.src.DefaultStates
	}

	c.states = make(map[string]bool, len(list))
	for _, s := range list {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || c.states[s] {
			continue
		}
		c.states[s] = true
		c.stateList = append(c.stateList, s)
	}
}

// execute opens the run, calls fn, and closes the run exactly once.
func (c *crawl) execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	c.run, err = c.o.store.StartRun(ctx, c.sc.ID)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	defer func() {
		// The run record is closed even when ctx was cancelled.
		bg := context.WithoutCancel(ctx)
		now := time.Now()
		c.run.FinishedAt = &now
		if err != nil {
			msg := err.Error()
			c.run.Status = models.RunStatusFailed
			c.run.ErrorMessage = &msg
			c.logf(models.LogLevelError, "Run failed: %v", err)
		} else {
			c.run.Status = models.RunStatusCompleted
			c.logf(models.LogLevelInfo, "Completed: %d found, %d new, %d errors",
				c.run.PropertiesFound, c.run.PropertiesNew, c.run.ErrorsCount)
		}

		if ferr := c.o.store.FinishRun(bg, c.run); ferr != nil {
			log.Printf("Warning: failed to finish run %s: %v", c.run.ID, ferr)
		}
		if c.run.Status == models.RunStatusCompleted {
			if terr := c.o.store.TouchScrapingConfig(bg, c.sc.ID, now); terr != nil {
				log.Printf("Warning: failed to touch config %s: %v", c.sc.ID, terr)
			}
		}
	}()

	return fn(ctx)
}

// collect pages through every seed and returns the deduplicated links.
// reachable is false when not a single index fetch succeeded.
func (c *crawl) collect(ctx context.Context) (links []Link, reachable bool, lastErr error) {
	seen := make(map[string]bool)

	for i, seed := range c.src.Seeds {
		if i > 0 {
			if err := sleep(ctx, c.src.SeedDelay()); err != nil {
				return links, reachable, err
			}
		}

		empty := 0
		for page := 1; page <= c.src.MaxPages && empty < c.src.MaxConsecutiveEmpty; page++ {
			if page > 1 {
				if err := sleep(ctx, c.src.PageDelay()); err != nil {
					return links, reachable, err
				}
			}

			pageURL := PageURL(seed, c.src.PageParam, page)
			html, err := c.fetchIndex(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return links, reachable, ctx.Err()
				}
				lastErr = err
				empty++
				c.logf(models.LogLevelWarn, "Page %d of %s failed: %v", page, seed, err)
				continue
			}
			reachable = true

			if c.links.Broken(html) {
				empty++
				c.logf(models.LogLevelWarn, "Page %d of %s is empty or an error page", page, seed)
				continue
			}

			pageLinks := c.links.Links(html, pageURL, c.states)
			if len(pageLinks) == 0 {
				empty++
				logging.Debugf("Page %d of %s: no listings", page, seed)
				continue
			}
			empty = 0

			added := 0
			for _, l := range pageLinks {
				if seen[l.ExternalID] {
					continue
				}
				seen[l.ExternalID] = true
				links = append(links, l)
				added++
			}
			logging.Debugf("Page %d of %s: %d listings (%d new)", page, seed, len(pageLinks), added)

			if c.links.LastPage(html, page, len(pageLinks)) {
				break
			}
		}
	}

	return links, reachable, lastErr
}

// process drops known links, then fetches, extracts and stages the rest
// in concurrent batches.
func (c *crawl) process(ctx context.Context, links []Link) error {
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ExternalID
	}
	idx, err := LoadDedupIndex(ctx, c.o.store, ids)
	if err != nil {
		return fmt.Errorf("load dedup index: %w", err)
	}

	candidates := idx.Filter(links)
	c.logf(models.LogLevelInfo, "%d of %d links are new", len(candidates), len(links))
	if len(candidates) > c.src.MaxNewPerRun {
		candidates = candidates[:c.src.MaxNewPerRun]
	}

	for start := 0; start < len(candidates); start += c.src.BatchSize {
		if start > 0 {
			if err := sleep(ctx, c.src.BatchDelay()); err != nil {
				return err
			}
		}
		end := min(start+c.src.BatchSize, len(candidates))

		var g errgroup.Group
		for _, link := range candidates[start:end] {
			g.Go(func() error {
				c.processLink(ctx, idx, link)
				return nil
			})
		}
		g.Wait()
	}

	return ctx.Err()
}

func (c *crawl) processLink(ctx context.Context, idx *DedupIndex, link Link) {
	dctx, cancel := context.WithTimeout(ctx, c.src.DetailTimeout())
	defer cancel()

	page, err := c.o.fetcher.Fetch(dctx, FetchRequest{
		URL:     link.URL,
		Formats: []Format{FormatHTML},
		WaitFor: c.src.RenderWaitMS,
	})
	if err != nil {
		c.failed(link, err)
		return
	}
	if len(page.HTML) < c.src.MinDetailHTML {
		c.failed(link, fmt.Errorf("%w: detail page has %d characters", models.ErrInsufficientContent, len(page.HTML)))
		return
	}

	draft, err := extract.HTML(page.HTML, c.hints(link))
	if err != nil {
		c.failed(link, err)
		return
	}

	if !c.sc.Accepts(draft) {
		logging.Debugf("%s filtered out by config %s", link.ExternalID, c.sc.ID)
		return
	}

	c.stage(ctx, idx, draft)
}

func (c *crawl) stage(ctx context.Context, idx *DedupIndex, draft *models.PropertyDraft) {
	raw, _ := json.Marshal(draft)
	rec := models.NewStagingRecord(*draft, raw)

	err := c.o.store.InsertStaging(ctx, rec)
	if errors.Is(err, models.ErrDuplicateExternalID) {
		logging.Debugf("%s was staged concurrently, skipping", draft.ExternalID)
		return
	}
	if err != nil {
		c.failed(Link{URL: draft.SourceURL, ExternalID: draft.ExternalID}, fmt.Errorf("stage: %w", err))
		return
	}

	idx.Add(draft.ExternalID)
	c.mu.Lock()
	c.run.PropertiesNew++
	c.mu.Unlock()
	c.logf(models.LogLevelInfo, "Staged %s: %s (R$ %.2f)", draft.ExternalID, draft.Title, draft.Price)
}

func (c *crawl) failed(link Link, err error) {
	c.mu.Lock()
	c.run.ErrorsCount++
	c.mu.Unlock()
	c.logf(models.LogLevelWarn, "Skipping %s: %v", link.URL, err)
}

func (c *crawl) fetchIndex(ctx context.Context, pageURL string) (string, error) {
	lctx, cancel := context.WithTimeout(ctx, c.src.ListTimeout())
	defer cancel()

	page, err := c.o.fetcher.Fetch(lctx, FetchRequest{
		URL:     pageURL,
		Formats: []Format{FormatHTML},
		WaitFor: c.src.RenderWaitMS,
	})
	if err != nil {
		return "", err
	}
	return page.HTML, nil
}

func (c *crawl) hints(link Link) extract.Hints {
	return extract.Hints{
		ExternalID:  link.ExternalID,
		SourceURL:   link.URL,
		City:        link.City,
		State:       link.State,
		ImagePrefix: c.src.ImagePrefix,
	}
}

func (c *crawl) logf(level models.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s/%s: %s", level, c.sc.ID, shortID(c.run), msg)

	if c.run == nil {
		return
	}
	runID := c.run.ID
	entry := &models.ScrapeLog{
		RunID:     &runID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		ConfigID:  c.sc.ID,
	}
	if err := c.o.store.Log(context.Background(), entry); err != nil {
		log.Printf("Warning: failed to write run log: %v", err)
	}
}

func shortID(run *models.ScrapingRun) string {
	if run == nil {
		return "-"
	}
	return run.ID.String()[:8]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
