// Package search implements the Search Dispatcher (spec §4.2): fanning one
// query out to every registered Search Provider concurrently, under a
// shared per-provider timeout and circuit breaker, tolerating individual
// provider failures without aborting the batch.
package search

import "context"

// Provider is any object capable of searching one biomedical literature
// source. Implementations are expected to rate-limit internally and to
// classify failures into one of the domain.ProviderErrorKind values.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]EvidenceResult, error)
}

// EvidenceResult is the raw shape a Provider returns; the Dispatcher
// converts these into domain.Evidence, preserving the provider-declared
// order.
type EvidenceResult struct {
	Content   string
	Title     string
	URL       string
	Date      string
	Authors   []string
	Relevance float64
	Metadata  map[string]interface{}
}
