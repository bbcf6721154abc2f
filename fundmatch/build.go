package fundmatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// BuildArtifact embeds every record name and returns a store whose rows are
// aligned with records. workers bounds the number of concurrent EmbedText calls.
func BuildArtifact(ctx context.Context, embedder Embedder, records []FundRecord, workers int, logger *log.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no fund records to embed", ErrInvalidArgument)
	}
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	logf(logger, "Embedding %d fund names with %s (%d workers)", len(records), embedder.ModelID(), workers)

	vectors := make([][]float32, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		i := i
		g.Go(func() error {
			vec, err := embedder.EmbedText(gctx, records[i].Name)
			if err != nil {
				return fmt.Errorf("embed %q: %w", records[i].Name, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	store, err := NewStore(records, vectors)
	if err != nil {
		return nil, err
	}
	logf(logger, "Embedded %d funds in %.2fs", store.Len(), time.Since(start).Seconds())
	return store, nil
}
