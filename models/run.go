package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapingRun struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ConfigID        string     `json:"config_id" db:"config_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	PropertiesFound int        `json:"properties_found" db:"properties_found"`
	PropertiesNew   int        `json:"properties_new" db:"properties_new"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
	ErrorMessage    *string    `json:"error_message" db:"error_message"`
}

type RunOutcome string

const (
	OutcomeNothingFound RunOutcome = "nothing_found"
	OutcomeAllKnown     RunOutcome = "all_known"
	OutcomeNew          RunOutcome = "new"
	OutcomeFailed       RunOutcome = "failed"
	OutcomeRunning      RunOutcome = "running"
)

// Outcome distinguishes a healthy empty run from a failed one and from a
// run whose candidates were all already known.
func (r *ScrapingRun) Outcome() RunOutcome {
	switch {
	case r.Status == RunStatusRunning:
		return OutcomeRunning
	case r.Status == RunStatusFailed:
		return OutcomeFailed
	case r.PropertiesFound == 0:
		return OutcomeNothingFound
	case r.PropertiesNew == 0:
		return OutcomeAllKnown
	}
	return OutcomeNew
}

// ScrapingConfig is an operator-managed crawl target: which source, which
// states, and which post-extraction filters apply.
type ScrapingConfig struct {
	ID            string         `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	Source        string         `json:"source" db:"source"`
	States        []string       `json:"states" db:"states"`
	PropertyTypes []PropertyType `json:"property_types" db:"property_types"`
	Modalities    []string       `json:"modalities" db:"modalities"`
	MinPrice      float64        `json:"min_price" db:"min_price"`
	MaxPrice      float64        `json:"max_price" db:"max_price"`
	IsActive      bool           `json:"is_active" db:"is_active"`
	LastRunAt     *time.Time     `json:"last_run_at" db:"last_run_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Accepts applies the optional type, modality and price filters. Empty
// filters accept everything.
func (c *ScrapingConfig) Accepts(d *PropertyDraft) bool {
	if len(c.PropertyTypes) > 0 {
		ok := false
		for _, t := range c.PropertyTypes {
			if t == d.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(c.Modalities) > 0 {
		ok := false
		for _, m := range c.Modalities {
			if m == d.Modality {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if c.MinPrice > 0 && d.Price < c.MinPrice {
		return false
	}
	if c.MaxPrice > 0 && d.Price > c.MaxPrice {
		return false
	}
	return true
}
