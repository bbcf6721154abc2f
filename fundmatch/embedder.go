package fundmatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"indiafinance/fundmatch/emb"
)

// Embedder exposes the minimal surface required by the matcher.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	ModelID() string
}

// OrtEmbedder is a thin wrapper over emb.Encoder with caching.
type OrtEmbedder struct {
	mu    sync.RWMutex
	enc   *emb.Encoder
	cfg   EmbedderConfig
	cache *VectorCache
}

// NewOrtEmbedder loads the model and opens the vector cache. Any failure is
// reported as ErrEmbeddingUnavailable.
func NewOrtEmbedder(cfg EmbedderConfig) (*OrtEmbedder, error) {
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(cfg.ModelPath)
	}
	encoder := &emb.Encoder{}
	if err := encoder.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
		Dimension:     cfg.Dimension,
		Pooling:       emb.Pooling(cfg.Pooling),
		Normalize:     cfg.Normalize,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	cache, err := OpenVectorCache(cfg.CachePath, cacheNamespace(cfg))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return &OrtEmbedder{enc: encoder, cfg: cfg, cache: cache}, nil
}

// cacheNamespace names the cache bucket. Vectors differ by pooling and
// normalization, so both are part of it.
func cacheNamespace(cfg EmbedderConfig) string {
	pooling := cfg.Pooling
	if pooling == "" {
		pooling = string(emb.PoolingCLS)
	}
	return fmt.Sprintf("%s|pool=%s|norm=%t", cfg.ModelID, pooling, cfg.Normalize)
}

// Close releases ORT resources and the cache file.
func (o *OrtEmbedder) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enc != nil {
		o.enc.Close()
		o.enc = nil
	}
	if o.cache != nil {
		err := o.cache.Close()
		o.cache = nil
		return err
	}
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtEmbedder) ModelID() string {
	return o.cfg.ModelID
}

// EmbedText embeds a single string with caching.
func (o *OrtEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.enc == nil {
		return nil, fmt.Errorf("%w: embedder is closed", ErrEmbeddingUnavailable)
	}
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: nothing to embed", ErrInvalidArgument)
	}
	key := o.cache.Key(normalized)
	if vec, ok := o.cache.Lookup(key, o.enc.Dimension()); ok {
		return vec, nil
	}
	vec, err := o.enc.Encode(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vec) != o.enc.Dimension() {
		return nil, fmt.Errorf("%w: model produced %d values, expected %d", ErrEmbeddingUnavailable, len(vec), o.enc.Dimension())
	}
	_ = o.cache.Put(key, vec)
	return cloneVector(vec), nil
}

// EmbedTexts embeds a slice of strings sequentially.
func (o *OrtEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := o.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// LazyEmbedder defers loading the model until the first embedding call.
// Concurrent first calls share a single load; a successful load is reused for
// the lifetime of the LazyEmbedder and a failed one is retried on the next call.
type LazyEmbedder struct {
	modelID string
	load    func() (Embedder, error)

	mu     sync.RWMutex
	inner  Embedder
	closed bool
	loads  int
	group  singleflight.Group
}

// NewLazyEmbedder wraps a loader such as a closure over NewOrtEmbedder.
func NewLazyEmbedder(modelID string, load func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{modelID: modelID, load: load}
}

// NewLazyOrtEmbedder defers NewOrtEmbedder(cfg) to first use.
func NewLazyOrtEmbedder(cfg EmbedderConfig) *LazyEmbedder {
	return NewLazyEmbedder(cfg.ModelID, func() (Embedder, error) {
		e, err := NewOrtEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

var errLazyClosed = errors.New("embedder is closed")

func (l *LazyEmbedder) get() (Embedder, error) {
	l.mu.RLock()
	inner, closed := l.inner, l.closed
	l.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, errLazyClosed)
	}
	if inner != nil {
		return inner, nil
	}
	v, err, _ := l.group.Do("load", func() (any, error) {
		l.mu.RLock()
		inner, closed := l.inner, l.closed
		l.mu.RUnlock()
		if closed {
			return nil, errLazyClosed
		}
		if inner != nil {
			return inner, nil
		}
		e, err := l.load()
		l.mu.Lock()
		defer l.mu.Unlock()
		l.loads++
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, errors.New("loader returned no embedder")
		}
		if l.closed {
			_ = e.Close()
			return nil, errLazyClosed
		}
		l.inner = e
		return e, nil
	})
	if err != nil {
		if errors.Is(err, ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return v.(Embedder), nil
}

// Loaded reports whether the model has been loaded.
func (l *LazyEmbedder) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner != nil
}

// LoadAttempts reports how many times the loader has run.
func (l *LazyEmbedder) LoadAttempts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loads
}

// Warm loads the model now instead of on first use.
func (l *LazyEmbedder) Warm() error {
	_, err := l.get()
	return err
}

// EmbedText loads the model if needed and embeds text.
func (l *LazyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedText(ctx, text)
}

// EmbedTexts loads the model if needed and embeds texts.
func (l *LazyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedTexts(ctx, texts)
}

// ModelID returns the configured model identifier without loading the model.
func (l *LazyEmbedder) ModelID() string {
	return l.modelID
}

// Close releases the loaded model, if any. Later calls fail with ErrEmbeddingUnavailable.
func (l *LazyEmbedder) Close() error {
	l.mu.Lock()
	inner := l.inner
	l.inner = nil
	l.closed = true
	l.mu.Unlock()
	if inner != nil {
		return inner.Close()
	}
	return nil
}
