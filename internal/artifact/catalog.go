package artifact

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/localpdk/pdk/internal/model"
)

// catalog is a SQLite-backed index of stored artifacts, used purely to
// make List/Exists/Cleanup fast without scanning the base directory or
// parsing every manifest. It is explicitly NOT a run-history store: it
// holds one row per current artifact, keyed by name, and rows disappear
// on Delete/Cleanup — there is no append-only execution log here.
//
// Grounded on the teacher's internal/persistence/sqlite.go: the same
// driver+embed blank-import pair, single-connection pool sizing, and
// WAL/synchronous/busy_timeout pragma tuning, reused verbatim because
// this is a single-process CLI exactly like the teacher's.
type catalog struct {
	db *sql.DB
}

func openCatalog(path string) (*catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("artifact: opening catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("artifact: applying %s: %w", p, err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		name TEXT PRIMARY KEY,
		storage_path TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		compression TEXT NOT NULL,
		file_count INTEGER NOT NULL,
		total_size_bytes INTEGER NOT NULL,
		compressed_size_bytes INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("artifact: creating catalog schema: %w", err)
	}

	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("artifact: securing catalog file: %w", err)
	}

	return &catalog{db: db}, nil
}

func (c *catalog) close() error {
	return c.db.Close()
}

func (c *catalog) upsert(name, storagePath string, m model.ArtifactManifest) error {
	_, err := c.db.Exec(`
		INSERT INTO artifacts (name, storage_path, created_at, compression, file_count, total_size_bytes, compressed_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			storage_path=excluded.storage_path,
			created_at=excluded.created_at,
			compression=excluded.compression,
			file_count=excluded.file_count,
			total_size_bytes=excluded.total_size_bytes,
			compressed_size_bytes=excluded.compressed_size_bytes`,
		name, storagePath, m.CreatedAt.Unix(), string(m.Compression), m.FileCount, m.TotalSizeBytes, m.CompressedBytes)
	return err
}

func (c *catalog) list() ([]string, error) {
	rows, err := c.db.Query(`SELECT name FROM artifacts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *catalog) exists(name string) bool {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM artifacts WHERE name = ?`, name).Scan(&count)
	return err == nil && count > 0
}

func (c *catalog) remove(name string) error {
	_, err := c.db.Exec(`DELETE FROM artifacts WHERE name = ?`, name)
	return err
}

func (c *catalog) olderThan(cutoff time.Time) ([]string, error) {
	rows, err := c.db.Query(`SELECT name FROM artifacts WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
