package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdCrawl             CommandType = "crawl"
	CmdCrawlURL          CommandType = "crawl_url"
	CmdImportStaging     CommandType = "import_staging"
	CmdIgnoreStaging     CommandType = "ignore_staging"
	CmdDeleteStaging     CommandType = "delete_staging"
	CmdBulkImportStaging CommandType = "bulk_import_staging"
	CmdBulkDeleteStaging CommandType = "bulk_delete_staging"
	CmdClearStaging      CommandType = "clear_staging"
	CmdDeleteProperty    CommandType = "delete_property"
	CmdClearProperties   CommandType = "clear_properties"
	CmdSetPropertyStatus CommandType = "set_property_status"
	CmdCreateProperty    CommandType = "create_property"
	CmdPause             CommandType = "pause"
	CmdResume            CommandType = "resume"
	CmdStatus            CommandType = "status"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
	Result      string          `json:"result,omitempty" db:"result"`
}

type CommandParams struct {
	ConfigID string         `json:"config_id,omitempty"`
	URL      string         `json:"url,omitempty"`
	States   []string       `json:"states,omitempty"`
	ID       string         `json:"id,omitempty"`
	IDs      []string       `json:"ids,omitempty"`
	Status   CatalogStatus  `json:"status,omitempty"`
	Draft    *PropertyDraft `json:"draft,omitempty"`
}
