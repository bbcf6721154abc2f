package fundmatch

import (
	"fmt"
	"math"
	"sort"
)

// Ranked is a matrix row index paired with its cosine similarity to the query.
type Ranked struct {
	Index int
	Score float32
}

// Rank scores query against every row of matrix and returns the topN best rows,
// score descending and row index ascending on ties. Rows of zero magnitude
// score 0. A zero-magnitude or non-finite query, a dimension mismatch and a
// row that yields a non-finite score are rejected.
func Rank(query []float32, matrix [][]float32, topN int) ([]Ranked, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidArgument, topN)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidArgument)
	}
	if i := firstNonFinite(query); i >= 0 {
		return nil, fmt.Errorf("%w: query vector has non-finite value at %d", ErrInvalidArgument, i)
	}
	qNorm := magnitude(query)
	if qNorm == 0 {
		return nil, fmt.Errorf("%w: query vector has zero magnitude", ErrInvalidArgument)
	}
	hits := make([]Ranked, len(matrix))
	for i, row := range matrix {
		if len(row) != len(query) {
			return nil, fmt.Errorf("%w: query dimension %d does not match row %d dimension %d",
				ErrInvalidArgument, len(query), i, len(row))
		}
		score := cosineWithNorm(query, qNorm, row)
		if !isFinite32(score) {
			return nil, fmt.Errorf("%w: row %d has a non-finite similarity", ErrInvalidArgument, i)
		}
		hits[i] = Ranked{Index: i, Score: score}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Index < hits[j].Index
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either vector has zero
// magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := magnitude(a)
	if na == 0 {
		return 0
	}
	return cosineWithNorm(a, na, b)
}

func cosineWithNorm(q []float32, qNorm float64, v []float32) float32 {
	var dot, nv float64
	for i := range q {
		fv := float64(v[i])
		dot += float64(q[i]) * fv
		nv += fv * fv
	}
	if nv == 0 {
		return 0
	}
	return float32(dot / (qNorm * math.Sqrt(nv)))
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// firstNonFinite returns the index of the first NaN or Inf in v, or -1.
func firstNonFinite(v []float32) int {
	for i, x := range v {
		if !isFinite32(x) {
			return i
		}
	}
	return -1
}

func isFinite32(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
