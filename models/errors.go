package models

import "errors"

var (
	ErrExtractionFailed       = errors.New("extraction failed: no resolvable price")
	ErrFetchFailed            = errors.New("fetch failed")
	ErrServiceUnavailable     = errors.New("extraction service unavailable")
	ErrInsufficientContent    = errors.New("insufficient content")
	ErrUnparsableResponse     = errors.New("unparsable response")
	ErrDuplicateExternalID    = errors.New("duplicate external id")
	ErrPromotionInconsistency = errors.New("promotion inconsistency: catalog row created but staging record not marked imported")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrUnrecognizedPage       = errors.New("page is neither a listing index nor a listing detail")
	ErrRunInProgress          = errors.New("a run for this config is already in progress")
	ErrUnsupportedMedia       = errors.New("unsupported media type")
	ErrMediaTooLarge          = errors.New("media exceeds size limit")
)
