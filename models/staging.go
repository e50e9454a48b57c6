package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type StagingStatus string

const (
	StagingPending  StagingStatus = "pending"
	StagingImported StagingStatus = "imported"
	StagingIgnored  StagingStatus = "ignored"
)

func (s StagingStatus) Valid() bool {
	switch s {
	case StagingPending, StagingImported, StagingIgnored:
		return true
	}
	return false
}

type StagingRecord struct {
	ID uuid.UUID `json:"id" db:"id"`
	PropertyDraft
	Status     StagingStatus   `json:"status" db:"status"`
	ScrapedAt  time.Time       `json:"scraped_at" db:"scraped_at"`
	ReviewedAt *time.Time      `json:"reviewed_at" db:"reviewed_at"`
	RawData    json.RawMessage `json:"raw_data,omitempty" db:"raw_data"`

	// AlreadyImported is derived at read time and never persisted.
	AlreadyImported bool `json:"already_imported" db:"-"`
}

// NewStagingRecord wraps a draft as a pending record.
func NewStagingRecord(draft PropertyDraft, raw json.RawMessage) *StagingRecord {
	return &StagingRecord{
		ID:            uuid.New(),
		PropertyDraft: draft,
		Status:        StagingPending,
		ScrapedAt:     time.Now(),
		RawData:       raw,
	}
}

// BulkResult summarises a continue-on-error bulk operation.
type BulkResult struct {
	Imported int           `json:"imported"`
	Errors   int           `json:"errors"`
	Failures []BulkFailure `json:"failures,omitempty"`
}

type BulkFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}
