package proximity

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNoGeocodeMatch is returned when an address resolves to no candidates.
var ErrNoGeocodeMatch = eris.New("proximity: no geocode match")

// ProviderError reports a provider response whose status is neither success
// nor "no results". It aborts the current operation only.
type ProviderError struct {
	Op      string
	Status  string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proximity: %s: provider status %s", e.Op, e.Status)
	}
	return fmt.Sprintf("proximity: %s: provider status %s: %s", e.Op, e.Status, e.Message)
}
