package fundmatch

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// trigramEmbedder hashes character trigrams into a small dense vector so
// similar spellings land close together. Deterministic and model-free.
type trigramEmbedder struct {
	dim   int
	calls atomic.Int64
	err   error
}

func newTrigramEmbedder() *trigramEmbedder { return &trigramEmbedder{dim: 64} }

func (e *trigramEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return trigramVector(text, e.dim), nil
}

func (e *trigramEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *trigramEmbedder) Close() error    { return nil }
func (e *trigramEmbedder) ModelID() string { return "trigram-test" }

func trigramVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	padded := "  " + strings.ToLower(NormalizeText(text)) + " "
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%uint32(dim)]++
	}
	return vec
}

// failingEmbedder always fails and counts calls.
type failingEmbedder struct {
	calls atomic.Int64
}

func (f *failingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	f.calls.Add(1)
	return nil, errors.Join(ErrEmbeddingUnavailable, errors.New("weights missing"))
}

func (f *failingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	_, err := f.EmbedText(ctx, "")
	return nil, err
}

func (f *failingEmbedder) Close() error    { return nil }
func (f *failingEmbedder) ModelID() string { return "failing" }

// closeRecorder records Close calls for lazy-loader tests.
type closeRecorder struct {
	trigramEmbedder
	mu     sync.Mutex
	closed int
}

func (c *closeRecorder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

var sampleFunds = []FundRecord{
	{Name: "Axis Bluechip Fund", Code: 101},
	{Name: "Axis Long Term Equity Fund", Code: 102},
	{Name: "SBI Bluechip Fund", Code: 103},
	{Name: "HDFC Mid-Cap Opportunities Fund", Code: 104},
	{Name: "Principal Emerging Bluechip Fund", Code: 105},
	{Name: "ICICI Prudential Liquid Fund", Code: 106},
}

func newSampleStore(t *testing.T, records []FundRecord) *Store {
	t.Helper()
	vecs := make([][]float32, len(records))
	for i, r := range records {
		vecs[i] = trigramVector(r.Name, 64)
	}
	store, err := NewStore(records, vecs)
	require.NoError(t, err)
	return store
}

func unitAt(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}
