package fundmatch

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"math"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStoreJSONPairs(t *testing.T) {
	path := writeFile(t, "funds.json", `{
		"fund_data": [["Axis Bluechip Fund", 101], ["Axis Long Term Equity Fund", "102"]],
		"embeddings": [[0.1, 0.2, 0.3], [0.3, 0.2, 0.1]]
	}`)
	var buf bytes.Buffer
	store, err := LoadStore(path, log.New(&buf, "", 0))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, store.Dim())
	assert.Equal(t, FundRecord{Name: "Axis Long Term Equity Fund", Code: 102}, store.Record(1))
	assert.Equal(t, []float32{0.3, 0.2, 0.1}, store.Vector(1))
	assert.Contains(t, buf.String(), "Loaded 2 funds")
}

func TestLoadStoreJSONObjects(t *testing.T) {
	path := writeFile(t, "funds.json", `{
		"fund_data": [{"name": "SBI Bluechip Fund", "code": 103}],
		"embeddings": [[1, 0]]
	}`)
	store, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []FundRecord{{Name: "SBI Bluechip Fund", Code: 103}}, store.Records())
}

func TestLoadStoreUnavailable(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"empty path": "",
		"missing":    filepath.Join(dir, "nope.json"),
		"directory":  dir,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStore(path, nil)
			assert.ErrorIs(t, err, ErrStoreUnavailable)
		})
	}
}

func TestLoadStoreCorrupt(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"fund_data": [`,
		"length mismatch":    `{"fund_data": [["A", 1], ["B", 2]], "embeddings": [[1, 0]]}`,
		"ragged dimensions":  `{"fund_data": [["A", 1], ["B", 2]], "embeddings": [[1, 0], [1, 0, 0]]}`,
		"empty vector":       `{"fund_data": [["A", 1]], "embeddings": [[]]}`,
		"no records":         `{"fund_data": [], "embeddings": []}`,
		"bad code":           `{"fund_data": [["A", "x1"]], "embeddings": [[1]]}`,
		"pair with 3 fields": `{"fund_data": [["A", 1, 2]], "embeddings": [[1]]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "funds.json", content)
			_, err := LoadStore(path, nil)
			assert.ErrorIs(t, err, ErrStoreCorrupt)
		})
	}
}

func TestNewStoreCopiesInput(t *testing.T) {
	recs := []FundRecord{{Name: "A", Code: 1}}
	vecs := [][]float32{{1, 2}}
	store, err := NewStore(recs, vecs)
	require.NoError(t, err)
	recs[0].Name = "changed"
	vecs[0][0] = 99
	assert.Equal(t, "A", store.Record(0).Name)
	assert.Equal(t, []float32{1, 2}, store.Vector(0))
}

func TestJSONArtifactRoundTrip(t *testing.T) {
	store := newSampleStore(t, sampleFunds)
	path := filepath.Join(t.TempDir(), "out", "funds.json")
	require.NoError(t, WriteArtifact(path, store))

	loaded, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Records(), loaded.Records())
	assert.Equal(t, store.matrix(), loaded.matrix())
}

func TestSQLiteArtifactRoundTrip(t *testing.T) {
	store := newSampleStore(t, sampleFunds)
	path := filepath.Join(t.TempDir(), "funds.db")
	require.NoError(t, WriteArtifact(path, store))

	loaded, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Records(), loaded.Records())
	assert.Equal(t, store.matrix(), loaded.matrix())

	// Rewriting replaces the previous artifact rather than appending rows.
	require.NoError(t, WriteArtifact(path, store))
	again, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Len(), again.Len())
}

func TestSQLiteArtifactNotADatabase(t *testing.T) {
	path := writeFile(t, "funds.sqlite", "definitely not sqlite")
	_, err := LoadStore(path, nil)
	assert.ErrorIs(t, err, ErrStoreCorrupt)
}

func TestNewStoreRejectsNonFinite(t *testing.T) {
	recs := []FundRecord{{Name: "A", Code: 1}, {Name: "B", Code: 2}}
	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		_, err := NewStore(recs, [][]float32{{1, 0}, {bad, 1}})
		assert.ErrorIs(t, err, ErrStoreCorrupt)
	}
}

func TestSQLiteArtifactWithNaNIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funds.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	for i, vec := range [][]float32{{1, 0}, {float32(math.NaN()), 1}} {
		blob := make([]byte, 4*len(vec))
		for j, v := range vec {
			binary.LittleEndian.PutUint32(blob[4*j:], math.Float32bits(v))
		}
		_, err = db.Exec(queryInsertFund, i, sampleFunds[i].Name, sampleFunds[i].Code, blob)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	_, err = LoadStore(path, nil)
	assert.ErrorIs(t, err, ErrStoreCorrupt)
}
