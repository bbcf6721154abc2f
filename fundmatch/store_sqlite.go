package fundmatch

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS funds (
    position INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    code INTEGER NOT NULL,
    embedding BLOB NOT NULL
);
`

const (
	queryInsertFund = `INSERT INTO funds (position, name, code, embedding) VALUES (?, ?, ?, ?)`
	querySelectFund = `SELECT position, name, code, embedding FROM funds ORDER BY position`
)

func loadSQLiteStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, filepath.Base(path), err)
	}
	defer db.Close()

	rows, err := db.Query(querySelectFund)
	if err != nil {
		return nil, fmt.Errorf("%w: query funds: %v", ErrStoreCorrupt, err)
	}
	defer rows.Close()

	var records []FundRecord
	var embeddings [][]float32
	for rows.Next() {
		var position int64
		var rec FundRecord
		var blob []byte
		if err := rows.Scan(&position, &rec.Name, &rec.Code, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan fund row: %v", ErrStoreCorrupt, err)
		}
		vec, err := decodeFloat32Blob(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: fund %q: %v", ErrStoreCorrupt, rec.Name, err)
		}
		records = append(records, rec)
		embeddings = append(embeddings, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read funds: %v", ErrStoreCorrupt, err)
	}
	return NewStore(records, embeddings)
}

// WriteSQLiteArtifact persists the store as a SQLite artifact. An existing
// file at path is replaced.
func WriteSQLiteArtifact(path string, s *Store) error {
	if s == nil {
		return errors.New("nil store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := writeSQLite(tmp, s); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

func writeSQLite(path string, s *Store) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(queryInsertFund)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, rec := range s.records {
		blob, err := sqlite_vec.SerializeFloat32(s.embeddings[i])
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("serialize embedding %d: %w", i, err)
		}
		if _, err := stmt.Exec(i, rec.Name, rec.Code, blob); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert fund %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
