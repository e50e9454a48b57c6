package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"caixa_scrooper/config"
	"caixa_scrooper/models"
	"caixa_scrooper/services"
	"caixa_scrooper/storage"
)

const pollInterval = 2 * time.Second

// Runner is the part of the crawl orchestrator the scheduler drives.
type Runner interface {
	RunAll(ctx context.Context) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
	MarshalStatus() ([]byte, error)
}

type Scheduler struct {
	cfg          *config.Config
	orchestrator Runner
	queue        storage.CommandQueue
	staging      *services.StagingService
	catalog      *services.CatalogService
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator Runner, queue storage.CommandQueue, staging *services.StagingService, catalog *services.CatalogService) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		queue:        queue,
		staging:      staging,
		catalog:      catalog,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.queue != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending runs every queued command once, in order, and records each
// outcome on the command row.
func (s *Scheduler) ProcessPending(ctx context.Context) int {
	cmds, err := s.queue.GetPendingCommands(ctx)
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return 0
	}

	for _, cmd := range cmds {
		if ctx.Err() != nil {
			return 0
		}
		log.Printf("Processing command: %s", cmd.Command)
		result, err := s.handleCommand(ctx, &cmd)
		if err != nil {
			log.Printf("Command error: %v", err)
			result = "error: " + err.Error()
		}
		if err := s.queue.MarkCommandProcessed(ctx, cmd.ID, result); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
	return len(cmds)
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) (string, error) {
	switch cmd.Command {
	case models.CmdCrawl, models.CmdCrawlURL, models.CmdPause, models.CmdResume:
		if err := s.orchestrator.HandleCommand(ctx, cmd); err != nil {
			return "", err
		}
		return "ok", nil

	case models.CmdStatus:
		status, err := s.orchestrator.MarshalStatus()
		if err != nil {
			return "", err
		}
		return string(status), nil
	}

	params, err := storage.ParseCommandParams(cmd)
	if err != nil {
		return "", fmt.Errorf("parse params: %w", err)
	}

	switch cmd.Command {
	case models.CmdImportStaging:
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return "", fmt.Errorf("invalid id %q: %w", params.ID, err)
		}
		prop, err := s.staging.Import(ctx, id)
		if err != nil {
			return "", err
		}
		return "imported as " + prop.ID.String(), nil

	case models.CmdIgnoreStaging:
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return "", fmt.Errorf("invalid id %q: %w", params.ID, err)
		}
		return "ok", s.staging.Ignore(ctx, id)

	case models.CmdDeleteStaging:
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return "", fmt.Errorf("invalid id %q: %w", params.ID, err)
		}
		return "ok", s.staging.Delete(ctx, id)

	case models.CmdBulkImportStaging:
		ids, err := parseIDs(params.IDs)
		if err != nil {
			return "", err
		}
		result := s.staging.BulkImport(ctx, ids)
		out, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(out), nil

	case models.CmdBulkDeleteStaging:
		ids, err := parseIDs(params.IDs)
		if err != nil {
			return "", err
		}
		n, err := s.staging.BulkDelete(ctx, ids)
		return fmt.Sprintf("deleted %d", n), err

	case models.CmdClearStaging:
		n, err := s.staging.ClearAll(ctx)
		return fmt.Sprintf("deleted %d", n), err

	case models.CmdDeleteProperty:
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return "", fmt.Errorf("invalid id %q: %w", params.ID, err)
		}
		return "ok", s.catalog.Delete(ctx, id)

	case models.CmdClearProperties:
		n, err := s.catalog.ClearAll(ctx)
		return fmt.Sprintf("deleted %d", n), err

	case models.CmdSetPropertyStatus:
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return "", fmt.Errorf("invalid id %q: %w", params.ID, err)
		}
		return "ok", s.catalog.SetStatus(ctx, id, params.Status)

	case models.CmdCreateProperty:
		if params.Draft == nil {
			return "", fmt.Errorf("%s requires a draft", cmd.Command)
		}
		prop, err := s.catalog.CreateManual(ctx, *params.Draft)
		if err != nil {
			return "", err
		}
		return "created " + prop.ID.String(), nil
	}

	return "", fmt.Errorf("unsupported command: %s", cmd.Command)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
