package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"caixa_scrooper/config"
	"caixa_scrooper/httputil"
	"caixa_scrooper/importer"
	"caixa_scrooper/logging"
	"caixa_scrooper/models"
	"caixa_scrooper/scheduler"
	"caixa_scrooper/scraper"
	"caixa_scrooper/services"
	"caixa_scrooper/storage"
)

var (
	crawlNow    = flag.Bool("crawl", false, "Run a crawl once and exit")
	configID    = flag.String("config", "", "Scraping config id (default: every active config)")
	states      = flag.String("states", "", "Comma-separated UF override, e.g. CE,PE")
	manualURL   = flag.String("manual-url", "", "Crawl one listing index or detail URL and exit")
	importURL   = flag.String("import-url", "", "Extract a property from any URL and print it")
	screenshot  = flag.String("screenshot", "", "Extract a property from a screenshot file or data: URL and print it")
	sourceURL   = flag.String("source-url", "", "Source URL recorded with -screenshot")
	stageResult = flag.Bool("stage", false, "Stage the -import-url or -screenshot result instead of printing it")
	listStaging = flag.Bool("list-staging", false, "Print pending staging records and exit")
	listCatalog = flag.String("list-catalog", "", "Print catalog properties and exit: all, featured or sold")
	createDraft = flag.String("create-property", "", "Publish a property from a JSON draft file and exit")
	listRuns    = flag.Bool("runs", false, "Print recent scraping runs with their outcome and exit")
	runLogs     = flag.String("run-logs", "", "Print the log entries of one scraping run and exit")
	upload      = flag.String("upload", "", "Upload an image file and print its URL")
)

const runsLimit = 20

// runSummary is a scraping run as printed by -runs.
type runSummary struct {
	models.ScrapingRun
	Outcome models.RunOutcome `json:"outcome"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting caixa_scrooper...")

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		log.Printf("  - %s (%s)", src.Name, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, queue, closeStores := openStores(ctx, cfg)
	defer closeStores()

	clients := httputil.NewClients()

	fetcher, err := scraper.NewFetcher(cfg, clients)
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}
	if c, ok := fetcher.(interface{ Close() }); ok {
		defer c.Close()
	}
	log.Printf("Fetcher: %s", cfg.Fetcher)

	staging := services.NewStagingService(store)
	catalog := services.NewCatalogService(store)
	intake := services.NewIntakeService(store)

	orchestrator := scraper.NewOrchestrator(cfg, store, fetcher)
	if err := orchestrator.EnsureDefaultConfigs(ctx); err != nil {
		log.Fatalf("Failed to seed scraping configs: %v", err)
	}

	overrideStates := splitStates(*states)

	// One-shot commands
	switch {
	case *crawlNow:
		log.Println("Running crawl...")
		if *configID != "" {
			run, err := orchestrator.RunConfig(ctx, *configID, overrideStates)
			if err != nil {
				log.Fatalf("Crawl failed: %v", err)
			}
			printJSON(run)
		} else if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Crawl failed: %v", err)
		}
		log.Println("Crawl complete!")
		return

	case *manualURL != "":
		id := *configID
		if id == "" {
			id = config.DefaultSourceID
		}
		run, err := orchestrator.RunManualURL(ctx, id, *manualURL, overrideStates)
		if err != nil {
			log.Fatalf("Manual crawl failed: %v", err)
		}
		printJSON(run)
		return

	case *importURL != "":
		adapter, err := importer.NewURLAdapter(fetcher, cfg.Sources[config.DefaultSourceID])
		if err != nil {
			log.Fatalf("Failed to create URL importer: %v", err)
		}
		res, err := adapter.Import(ctx, *importURL)
		finishImport(ctx, intake, res, err)
		return

	case *screenshot != "":
		links, err := scraper.NewLinkExtractor(cfg.Sources[config.DefaultSourceID])
		if err != nil {
			log.Fatalf("Failed to create link extractor: %v", err)
		}
		vision := importer.NewVisionClient(cfg.Vision, clients.API)
		adapter := importer.NewScreenshotAdapter(vision, links, cfg.Blob.MaxBytes)

		var res *importer.Result
		if strings.HasPrefix(*screenshot, "data:") {
			res, err = adapter.ImportDataURL(ctx, *screenshot, *sourceURL)
		} else {
			image, readErr := os.ReadFile(*screenshot)
			if readErr != nil {
				log.Fatalf("Failed to read screenshot: %v", readErr)
			}
			res, err = adapter.Import(ctx, image, "", *sourceURL)
		}
		finishImport(ctx, intake, res, err)
		return

	case *listStaging:
		records, err := staging.List(ctx, models.StagingPending)
		if err != nil {
			log.Fatalf("Failed to list staging: %v", err)
		}
		printJSON(records)
		return

	case *listCatalog != "":
		var props []models.CatalogProperty
		switch *listCatalog {
		case "featured":
			props, err = catalog.Featured(ctx)
		case "sold":
			props, err = catalog.RecentlySold(ctx)
		case "all":
			f := models.CatalogFilter{ShowSold: true}
			if len(overrideStates) == 1 {
				f.State = overrideStates[0]
			}
			props, err = catalog.List(ctx, f)
		default:
			log.Fatalf("Unknown catalog view %q (want all, featured or sold)", *listCatalog)
		}
		if err != nil {
			log.Fatalf("Failed to list catalog: %v", err)
		}
		printJSON(props)
		return

	case *createDraft != "":
		data, err := os.ReadFile(*createDraft)
		if err != nil {
			log.Fatalf("Failed to read draft: %v", err)
		}
		var draft models.PropertyDraft
		if err := json.Unmarshal(data, &draft); err != nil {
			log.Fatalf("Invalid draft JSON: %v", err)
		}
		prop, err := catalog.CreateManual(ctx, draft)
		if err != nil {
			log.Fatalf("Failed to create property: %v", err)
		}
		printJSON(prop)
		return

	case *listRuns:
		runs, err := store.ListRuns(ctx, *configID, runsLimit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		out := make([]runSummary, 0, len(runs))
		for _, r := range runs {
			out = append(out, runSummary{ScrapingRun: r, Outcome: r.Outcome()})
		}
		printJSON(out)
		return

	case *runLogs != "":
		id, err := uuid.Parse(*runLogs)
		if err != nil {
			log.Fatalf("Invalid run id %q: %v", *runLogs, err)
		}
		entries, err := store.ListLogs(ctx, id, 0)
		if err != nil {
			log.Fatalf("Failed to list run logs: %v", err)
		}
		printJSON(entries)
		return

	case *upload != "":
		f, err := os.Open(*upload)
		if err != nil {
			log.Fatalf("Failed to open upload: %v", err)
		}
		defer f.Close()
		media := services.NewMediaService(primaryBlobStore(ctx, cfg, clients), storage.NewLocalBlobStore(cfg.Blob.LocalDir))
		ref, err := media.Put(ctx, filepath.Base(*upload), "", f)
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Println(ref)
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, queue, staging, catalog)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// openStores returns the domain store and the command queue. Postgres holds
// domain data only, so its queue lives in the SQLite operational database.
func openStores(ctx context.Context, cfg *config.Config) (storage.Store, storage.CommandQueue, func()) {
	switch cfg.DBDriver {
	case "memory":
		log.Println("Using in-memory store, nothing will be persisted")
		mem := storage.NewMemoryStore()
		return mem, mem, func() {}

	case "postgres":
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			pgStore.Close()
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		log.Printf("SQLite command queue: %s", cfg.DBPath)
		return pgStore, sqliteStore, func() {
			pgStore.Close()
			sqliteStore.Close()
		}

	default:
		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		log.Printf("SQLite database: %s", cfg.DBPath)
		return sqliteStore, sqliteStore, func() { sqliteStore.Close() }
	}
}

func primaryBlobStore(ctx context.Context, cfg *config.Config, clients *httputil.Clients) storage.BlobStore {
	switch {
	case cfg.S3.Enabled():
		s3Store, err := storage.NewS3BlobStore(ctx, cfg.S3)
		if err != nil {
			log.Printf("Warning: S3 unavailable: %v", err)
			return nil
		}
		return s3Store
	case cfg.Supabase.Enabled():
		return storage.NewSupabaseBlobStore(cfg.Supabase, clients.API)
	}
	return nil
}

// finishImport prints an adapter result, or stages it with -stage. A partial
// draft is printed even when extraction failed so the operator can complete
// it by hand.
func finishImport(ctx context.Context, intake *services.IntakeService, res *importer.Result, err error) {
	if err != nil {
		if res == nil || !errors.Is(err, models.ErrExtractionFailed) {
			log.Fatalf("Import failed: %v", err)
		}
		log.Printf("Warning: %v", err)
	}

	if !*stageResult {
		printJSON(res)
		return
	}

	rec, err := intake.Stage(ctx, res)
	if err != nil {
		log.Fatalf("Staging failed: %v", err)
	}
	log.Printf("Staged %s as %s", rec.ExternalID, rec.ID)
}

func splitStates(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Warning: could not encode output: %v", err)
	}
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); !ok {
		return connStr
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
