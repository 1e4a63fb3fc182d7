package embed

import (
	"sync"

	"github.com/litagent/research-core/internal/domain"
)

// process-wide embedder singleton, constructed exactly once behind a
// sync.Once (spec §9's replacement for the reference implementation's
// global-singleton-with-documented-race pattern). Concurrent first-touchers
// block on the same Once and never double-initialize.
var (
	once     sync.Once
	instance Embedder
	initErr  error
)

// GetOrCreate returns the process-wide Embedder, constructing it on first
// call per cfg. Subsequent calls, regardless of cfg, return the
// already-constructed instance — callers that need per-tenant isolation
// should hold their own Embedder via dependency injection instead of this
// singleton, exactly as spec §9 recommends.
func GetOrCreate(cfg domain.EmbedderConfig) (Embedder, error) {
	once.Do(func() {
		if cfg.Backend == "" || cfg.Backend == "disabled" {
			instance = nil
			return
		}
		cached, err := NewCached(NewHuggingFaceEmbedder(cfg), cfg.CacheSize)
		if err != nil {
			initErr = err
			return
		}
		instance = cached
	})
	return instance, initErr
}

// resetForTest clears the singleton state; only the test package in this
// directory may call it.
func resetForTest() {
	once = sync.Once{}
	instance = nil
	initErr = nil
}
