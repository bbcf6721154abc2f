package fundmatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Matcher resolves free-text fund names to scheme codes: exact lookup first,
// embedding similarity against the store on a miss.
type Matcher struct {
	store    *Store
	names    *NameIndex
	embedder Embedder
	topN     int
	logger   *log.Logger
}

// NewMatcher builds the name index over store. A nil embedder leaves the
// matcher in exact-match-only mode: misses fail with ErrEmbeddingUnavailable.
func NewMatcher(store *Store, embedder Embedder, cfg Config, logger *log.Logger) (*Matcher, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrStoreUnavailable)
	}
	cfg.ApplyDefaults()
	m := &Matcher{
		store:    store,
		names:    BuildNameIndex(store.records),
		embedder: embedder,
		topN:     cfg.TopN,
		logger:   logger,
	}
	if dups := m.names.Duplicates(); len(dups) > 0 {
		m.logf("Warning: %d fund names occur more than once; the last code wins (e.g. %q)", len(dups), dups[0])
	}
	return m, nil
}

// Close releases embedder resources.
func (m *Matcher) Close() error {
	if m.embedder != nil {
		return m.embedder.Close()
	}
	return nil
}

// Store returns the underlying fund store.
func (m *Matcher) Store() *Store { return m.store }

// Names returns the exact-match index.
func (m *Matcher) Names() *NameIndex { return m.names }

// DefaultTopN is the result count used by ResolveDefault.
func (m *Matcher) DefaultTopN() int { return m.topN }

// ResolveDefault calls Resolve with the configured top-N.
func (m *Matcher) ResolveDefault(ctx context.Context, query string) ([]MatchResult, error) {
	return m.Resolve(ctx, query, m.topN)
}

// Resolve returns a single exact result with score 1 when query is a known
// fund name. Otherwise it embeds query and returns up to topN funds ranked by
// cosine similarity. Failures are returned as errors, never as empty results.
func (m *Matcher) Resolve(ctx context.Context, query string, topN int) ([]MatchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}
	if topN <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidArgument, topN)
	}
	m.logf("Finding matches for query fund: %s", query)
	if code, ok := m.names.Lookup(query); ok {
		m.logf("Exact match found for fund: %s", query)
		return []MatchResult{{FundName: query, FundCode: code, Score: 1.0, Exact: true}}, nil
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query has no text to embed", ErrInvalidArgument)
	}
	m.logf("No exact match found. Calculating similarities.")
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}
	vec, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ranked, err := Rank(vec, m.store.matrix(), topN)
	if err != nil {
		return nil, fmt.Errorf("rank query: %w", err)
	}
	out := make([]MatchResult, len(ranked))
	for i, r := range ranked {
		rec := m.store.records[r.Index]
		out[i] = MatchResult{FundName: rec.Name, FundCode: rec.Code, Score: r.Score}
		m.logf("Match found: %s with score %.2f", rec.Name, r.Score)
	}
	return out, nil
}

// ResolveAll resolves every query in order and stops at the first error.
func (m *Matcher) ResolveAll(ctx context.Context, queries []string, topN int) ([][]MatchResult, error) {
	out := make([][]MatchResult, len(queries))
	for i, q := range queries {
		res, err := m.Resolve(ctx, q, topN)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

// Suggest ranks fund names by Jaro-Winkler similarity to query, ignoring case.
// It never touches the embedding model, so it works when the semantic path is
// unavailable.
func (m *Matcher) Suggest(query string, n int) ([]Suggestion, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}
	q := strings.ToLower(NormalizeText(query))
	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0, len(m.store.records))
	for i, rec := range m.store.records {
		hits = append(hits, scored{idx: i, score: lexicalSimilarity(q, strings.ToLower(NormalizeText(rec.Name)))})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].idx < hits[j].idx
		}
		return hits[i].score > hits[j].score
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]Suggestion, len(hits))
	for i, h := range hits {
		rec := m.store.records[h.idx]
		out[i] = Suggestion{FundName: rec.Name, FundCode: rec.Code, Score: h.score}
	}
	return out, nil
}

func lexicalSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}

// IsSemanticUnavailable reports whether err came from a missing or broken model.
func IsSemanticUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}

func (m *Matcher) logf(format string, args ...any) {
	logf(m.logger, format, args...)
}
