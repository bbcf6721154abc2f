package fundmatch

import (
	"fmt"
	"log"
)

// Open loads the artifact named by cfg.StorePath and wires a matcher whose
// model is loaded on the first semantic lookup.
func Open(cfg Config, logger *log.Logger) (*Matcher, error) {
	cfg.ApplyDefaults()
	store, err := LoadStore(cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Embedder.Dimension > 0 && store.Dim() != cfg.Embedder.Dimension {
		return nil, fmt.Errorf("%w: artifact dimension %d does not match embedder dimension %d",
			ErrStoreCorrupt, store.Dim(), cfg.Embedder.Dimension)
	}
	return NewMatcher(store, NewLazyOrtEmbedder(cfg.Embedder), cfg, logger)
}
