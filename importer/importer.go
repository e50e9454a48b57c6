// Package importer turns an operator-supplied URL or screenshot into a
// property draft. Drafts are handed back to the caller, which decides
// whether to stage them or enter them directly into the catalog.
package importer

import (
	"encoding/json"

	"caixa_scrooper/models"
)

// Result is the outcome of one import. Draft is set even when extraction
// failed, so the operator can complete it by hand.
type Result struct {
	Draft      *models.PropertyDraft `json:"data"`
	Raw        json.RawMessage       `json:"raw,omitempty"`
	Screenshot string                `json:"screenshot,omitempty"`
}
