package scraper

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: fmt.Errorf("%w: bad scheme", ErrValidation), want: "ValidationError"},
		{name: "navigation", err: fmt.Errorf("%w: timeout", ErrNavigation), want: "NavigationError"},
		{name: "content extraction", err: fmt.Errorf("%w: no container", ErrContentExtraction), want: "ContentExtractionError"},
		{name: "decoy", err: fmt.Errorf("%w: interstitial", ErrDecoyPage), want: "DecoyPageError"},
		{name: "unexpected", err: errors.New("boom"), want: "UnexpectedError"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.want {
				t.Fatalf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

// A decoy classification is a specialization of content extraction, so both
// sentinels must match it.
func TestDecoyWrapsContentExtraction(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("%w: body contains decoy phrase", ErrDecoyPage)
	if !errors.Is(err, ErrDecoyPage) {
		t.Fatal("expected decoy error to match ErrDecoyPage")
	}
	if !errors.Is(err, ErrContentExtraction) {
		t.Fatal("expected decoy error to match ErrContentExtraction")
	}
}
