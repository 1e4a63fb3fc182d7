// Package embed implements the ambient embedding capability (spec §4.1/§4.5):
// an Embedder interface, an LRU-memoized decorator mirroring the teacher's
// CachedTranscriptResolver cache shape, and a process-wide lazy-init-under-
// lock singleton replacing the reference implementation's global-singleton
// anti-pattern.
package embed

import "context"

// Embedder produces a fixed-size vector embedding of arbitrary text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
