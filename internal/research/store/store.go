// Package store implements the per-request Evidence Store: canonical-ID
// deduplication, optional semantic near-duplicate collapse, top-N ranking
// by relevance to the original question, and a markdown summary fallback
// for judges/synthesizers that cannot ingest full records.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/embed"
)

// Store is the per-request, semantically-deduplicated Evidence collection.
// It is safe for concurrent use; all mutating operations are serialized by
// its own mutex.
type Store struct {
	mu                sync.Mutex
	question          string
	ids               []string // insertion order
	cache             map[string]domain.Evidence
	embeddings        map[string][]float32
	iterationCount    int
	embedder          embed.Embedder
	similarityThreshold float64
	logger            *logrus.Logger
}

// New constructs an Evidence Store scoped to one research question. embedder
// may be nil, in which case the Store relies solely on canonical-ID dedup
// and falls back to stored relevance for top-N selection.
func New(question string, embedder embed.Embedder, similarityThreshold float64, logger *logrus.Logger) *Store {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.90
	}
	return &Store{
		question:            question,
		ids:                  make([]string, 0),
		cache:                make(map[string]domain.Evidence),
		embeddings:           make(map[string][]float32),
		embedder:             embedder,
		similarityThreshold:  similarityThreshold,
		logger:               logger,
	}
}

// Ingest adds new Evidence, skipping canonical-ID and semantic duplicates.
// It is best-effort: it never returns an error, per spec §4.1.
func (s *Store) Ingest(evidence []domain.Evidence) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]string, 0, len(evidence))
	for _, e := range evidence {
		id := e.CanonicalID()

		if existing, ok := s.cache[id]; ok {
			s.cache[id] = mergeMetadata(existing, e)
			continue
		}

		if s.embedder != nil {
			if dup, emb := s.isSemanticDuplicateLocked(e); dup {
				continue
			} else if emb != nil {
				s.embeddings[id] = emb
			}
		}

		s.ids = append(s.ids, id)
		s.cache[id] = e
		added = append(added, id)
	}
	return added
}

// isSemanticDuplicateLocked must be called with s.mu held. On embedder
// failure it disables semantic dedup for the remainder of the request
// (spec §4.5 "Embedder failure: degrade gracefully") and returns false.
func (s *Store) isSemanticDuplicateLocked(e domain.Evidence) (bool, []float32) {
	vec, err := s.embedder.Embed(context.Background(), e.Content)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("embedder unavailable, disabling semantic dedup for remainder of request")
		}
		s.embedder = nil
		return false, nil
	}

	for _, existing := range s.embeddings {
		if cosineSimilarity(vec, existing) >= s.similarityThreshold {
			return true, nil
		}
	}
	return false, vec
}

func mergeMetadata(existing, incoming domain.Evidence) domain.Evidence {
	if existing.Metadata == nil {
		existing.Metadata = make(map[string]interface{})
	}
	for k, v := range incoming.Metadata {
		if _, present := existing.Metadata[k]; !present {
			existing.Metadata[k] = v
		}
	}
	return existing
}

// All returns every retained Evidence in insertion order.
func (s *Store) All() []domain.Evidence {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Evidence, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.cache[id])
	}
	return out
}

// Len reports the number of distinct Evidence records currently retained.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IncrementIteration bumps and returns the Store's iteration counter; the
// Orchestrator calls this once per loop pass.
func (s *Store) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterationCount++
	return s.iterationCount
}

// TopRelevant returns up to n Evidence ranked by semantic similarity of
// content to the original question. Without an embedder (or after it has
// degraded), it falls back to stored Relevance descending, tie-broken by
// insertion order.
func (s *Store) TopRelevant(n int) []domain.Evidence {
	s.mu.Lock()
	embedder := s.embedder
	ids := append([]string(nil), s.ids...)
	entries := make([]domain.Evidence, len(ids))
	for i, id := range ids {
		entries[i] = s.cache[id]
	}
	s.mu.Unlock()

	if n <= 0 || n > len(entries) {
		n = len(entries)
	}

	if embedder == nil {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Relevance > entries[j].Relevance
		})
		return entries[:n]
	}

	qVec, err := embedder.Embed(context.Background(), s.question)
	if err != nil {
		s.mu.Lock()
		s.embedder = nil
		s.mu.Unlock()
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Relevance > entries[j].Relevance
		})
		return entries[:n]
	}

	type scored struct {
		evidence domain.Evidence
		score    float64
		order    int
	}
	scoredEntries := make([]scored, len(entries))
	s.mu.Lock()
	for i, e := range entries {
		id := e.CanonicalID()
		vec, ok := s.embeddings[id]
		score := float64(0)
		if ok {
			score = cosineSimilarity(qVec, vec)
		}
		scoredEntries[i] = scored{evidence: e, score: score, order: i}
	}
	s.mu.Unlock()

	sort.SliceStable(scoredEntries, func(i, j int) bool {
		if scoredEntries[i].score != scoredEntries[j].score {
			return scoredEntries[i].score > scoredEntries[j].score
		}
		return scoredEntries[i].order < scoredEntries[j].order
	})

	out := make([]domain.Evidence, n)
	for i := 0; i < n; i++ {
		out[i] = scoredEntries[i].evidence
	}
	return out
}

// Summary renders a compact markdown listing of titles and one-sentence
// snippets, used as a textual fallback for judges/synthesizers that cannot
// ingest full records.
func (s *Store) Summary() string {
	evidence := s.All()
	if len(evidence) == 0 {
		return "No evidence gathered."
	}

	var b strings.Builder
	for i, e := range evidence {
		snippet := e.Content
		if idx := strings.IndexAny(snippet, ".\n"); idx > 0 && idx < len(snippet) {
			snippet = snippet[:idx+1]
		}
		fmt.Fprintf(&b, "%d. **%s** (%s, %s) — %s\n", i+1, e.Citation.Title, e.Citation.Source, e.Citation.Date, snippet)
	}
	return b.String()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
