package search

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/litagent/research-core/internal/domain"
)

// registeredProvider pairs a Provider with the circuit breaker that guards
// it and the CitationSource its Evidence should be tagged with. Grounded on
// the teacher's ResilientExternalClient, which keeps one gobreaker.CircuitBreaker
// per external database behind a single fan-out/fan-in GatherEvidence call.
type registeredProvider struct {
	provider Provider
	source   domain.CitationSource
	breaker  *gobreaker.CircuitBreaker
}

// Dispatcher fans one query out to every registered Provider concurrently,
// each guarded by its own circuit breaker, and joins partial results into a
// single SearchBatch (spec §4.2). A provider failure never aborts the batch.
type Dispatcher struct {
	providers      []registeredProvider
	providerTimeout time.Duration
}

// NewDispatcher builds a Dispatcher over providers, tagging each with the
// CitationSource its results should carry. providerTimeout bounds every
// individual provider call; it does not bound the whole batch — the caller's
// ctx does that.
func NewDispatcher(providers []Provider, sources []domain.CitationSource, providerTimeout time.Duration) *Dispatcher {
	if providerTimeout <= 0 {
		providerTimeout = 15 * time.Second
	}
	d := &Dispatcher{providerTimeout: providerTimeout}
	for i, p := range providers {
		name := p.Name()
		d.providers = append(d.providers, registeredProvider{
			provider: p,
			source:   sources[i],
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        name,
				MaxRequests: 3,
				Interval:    30 * time.Second,
				Timeout:     60 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
					return counts.Requests >= 3 && failureRatio >= 0.6
				},
			}),
		})
	}
	return d
}

type providerOutcome struct {
	index    int
	source   domain.CitationSource
	name     string
	evidence []domain.Evidence
	err      *domain.ProviderError
}

// Dispatch invokes every registered provider concurrently with query,
// collecting successes and recording failures without aborting the batch.
// Evidence from provider declared at index i precedes provider i+1's when
// both return; within one provider's results, original order is preserved.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, maxResults int) domain.SearchBatch {
	if maxResults <= 0 {
		maxResults = 10
	}

	outcomes := make([]providerOutcome, len(d.providers))
	var wg sync.WaitGroup
	wg.Add(len(d.providers))

	for i, rp := range d.providers {
		go func(i int, rp registeredProvider) {
			defer wg.Done()
			outcomes[i] = d.invoke(ctx, i, rp, query, maxResults)
		}(i, rp)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline already propagated into each provider call via its own
		// timeout context; wait for goroutines to unwind so we never read
		// outcomes concurrently with a write.
		<-done
	}

	batch := domain.SearchBatch{Query: query}
	for _, o := range outcomes {
		batch.SourcesSearched = append(batch.SourcesSearched, o.name)
		if o.err != nil {
			batch.Errors = append(batch.Errors, *o.err)
			continue
		}
		batch.Evidence = append(batch.Evidence, o.evidence...)
	}
	batch.TotalFound = len(batch.Evidence)
	return batch
}

func (d *Dispatcher) invoke(ctx context.Context, index int, rp registeredProvider, query string, maxResults int) providerOutcome {
	out := providerOutcome{index: index, source: rp.source, name: rp.provider.Name()}

	callCtx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	defer cancel()

	result, err := rp.breaker.Execute(func() (interface{}, error) {
		return rp.provider.Search(callCtx, query, maxResults)
	})

	if err != nil {
		out.err = classifyError(rp.provider.Name(), callCtx, err)
		return out
	}

	raw, _ := result.([]EvidenceResult)
	out.evidence = make([]domain.Evidence, 0, len(raw))
	for _, r := range raw {
		out.evidence = append(out.evidence, domain.Evidence{
			Content: r.Content,
			Citation: domain.Citation{
				Source:  rp.source,
				Title:   r.Title,
				URL:     r.URL,
				Date:    r.Date,
				Authors: r.Authors,
			},
			Relevance: r.Relevance,
			Metadata:  r.Metadata,
		})
	}
	return out
}

func classifyError(providerName string, callCtx context.Context, err error) *domain.ProviderError {
	kind := domain.ProviderProtocolError
	switch {
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		kind = domain.ProviderUpstreamUnavailable
	case callCtx.Err() == context.DeadlineExceeded:
		kind = domain.ProviderTimeout
	default:
		if pe, ok := err.(*ProviderSearchError); ok {
			kind = pe.Kind
		}
	}
	return &domain.ProviderError{
		ProviderName: providerName,
		ErrorKind:    kind,
		Message:      err.Error(),
	}
}

// ProviderSearchError lets a Provider implementation classify its own
// failures into the error taxonomy instead of leaving the Dispatcher to
// guess from a bare error.
type ProviderSearchError struct {
	Kind domain.ProviderErrorKind
	Err  error
}

func (e *ProviderSearchError) Error() string { return e.Err.Error() }
func (e *ProviderSearchError) Unwrap() error { return e.Err }
