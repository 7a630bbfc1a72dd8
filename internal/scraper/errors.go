package scraper

import (
	"errors"
	"fmt"
)

// Error kinds for the scrape workflow. DecoyPage wraps ContentExtraction so
// errors.Is(err, ErrContentExtraction) also matches decoy classifications.
var (
	ErrValidation        = errors.New("url validation failed")
	ErrNavigation        = errors.New("navigation failed")
	ErrContentExtraction = errors.New("content extraction failed")
	ErrDecoyPage         = fmt.Errorf("decoy page detected: %w", ErrContentExtraction)
)

// ClassifyError maps a workflow error to the kind name reported on terminal
// error events. Anything unrecognized is an UnexpectedError: the workflow
// must always terminate with a well-formed event.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrDecoyPage):
		return "DecoyPageError"
	case errors.Is(err, ErrContentExtraction):
		return "ContentExtractionError"
	case errors.Is(err, ErrNavigation):
		return "NavigationError"
	default:
		return "UnexpectedError"
	}
}
