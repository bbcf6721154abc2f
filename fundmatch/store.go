package fundmatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store holds the fund records and their index-aligned embedding matrix.
// It never changes after construction.
type Store struct {
	records    []FundRecord
	embeddings [][]float32
	dim        int
}

// artifactJSON is the on-disk layout of a .json artifact.
type artifactJSON struct {
	FundData   []FundRecord `json:"fund_data"`
	Embeddings [][]float32  `json:"embeddings"`
}

// NewStore validates the two collections and takes ownership of copies of them.
func NewStore(records []FundRecord, embeddings [][]float32) (*Store, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no fund records", ErrStoreCorrupt)
	}
	if len(records) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d records but %d embeddings", ErrStoreCorrupt, len(records), len(embeddings))
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: embedding 0 is empty", ErrStoreCorrupt)
	}
	matrix := make([][]float32, len(embeddings))
	for i, vec := range embeddings {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrStoreCorrupt, i, len(vec), dim)
		}
		if j := firstNonFinite(vec); j >= 0 {
			return nil, fmt.Errorf("%w: embedding %d has non-finite value at %d", ErrStoreCorrupt, i, j)
		}
		matrix[i] = cloneVector(vec)
	}
	recs := make([]FundRecord, len(records))
	copy(recs, records)
	return &Store{records: recs, embeddings: matrix, dim: dim}, nil
}

// LoadStore reads an artifact from path. The format is chosen by extension:
// .db/.sqlite/.sqlite3 are SQLite files, anything else is JSON.
func LoadStore(path string, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no artifact path configured (set %s)", ErrStoreUnavailable, StoreEnv)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrStoreUnavailable, path)
	}
	start := time.Now()
	logf(logger, "Loading fund embeddings from %s", path)

	var store *Store
	if isSQLitePath(path) {
		store, err = loadSQLiteStore(path)
	} else {
		store, err = loadJSONStore(path)
	}
	if err != nil {
		logf(logger, "Failed to load embeddings: %v", err)
		return nil, err
	}
	logf(logger, "Loaded %d funds (dim %d) in %.2fs", store.Len(), store.Dim(), time.Since(start).Seconds())
	return store, nil
}

func loadJSONStore(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()
	var art artifactJSON
	if err := json.NewDecoder(f).Decode(&art); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStoreCorrupt, filepath.Base(path), err)
	}
	return NewStore(art.FundData, art.Embeddings)
}

func isSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Dim returns the embedding dimension.
func (s *Store) Dim() int { return s.dim }

// Record returns record i.
func (s *Store) Record(i int) FundRecord { return s.records[i] }

// Vector returns a copy of embedding row i.
func (s *Store) Vector(i int) []float32 { return cloneVector(s.embeddings[i]) }

// Records returns a copy of all records in matrix order.
func (s *Store) Records() []FundRecord {
	out := make([]FundRecord, len(s.records))
	copy(out, s.records)
	return out
}

// matrix exposes the shared rows for read-only ranking.
func (s *Store) matrix() [][]float32 { return s.embeddings }

// WriteJSONArtifact persists the store as a .json artifact via temp file and rename.
func WriteJSONArtifact(path string, s *Store) error {
	if s == nil {
		return errors.New("nil store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.Marshal(artifactJSON{FundData: s.records, Embeddings: s.embeddings})
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// WriteArtifact picks the writer matching the extension of path.
func WriteArtifact(path string, s *Store) error {
	if isSQLitePath(path) {
		return WriteSQLiteArtifact(path, s)
	}
	return WriteJSONArtifact(path, s)
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
