package synapse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Downloader fetches one file handle's content to a destination path.
// *Client implements it; tests substitute a stub.
type Downloader interface {
	DownloadFileHandle(ctx context.Context, handleID, dest string) (int64, error)
}

// Cache indexes downloaded file handles in a SQLite database kept next
// to the files, so repeated runs over the same table skip the network.
// Resolved paths are read-only afterwards and safe for concurrent reads
// by the worker pool.
type Cache struct {
	db  *sql.DB
	dir string
}

// NewCache opens (or creates) the cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "file_cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS file_cache (
			file_handle_id TEXT PRIMARY KEY,
			path           TEXT NOT NULL,
			size           INTEGER NOT NULL,
			downloaded_at  TIMESTAMP NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db, dir: dir}, nil
}

// Close closes the cache index.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Resolve returns a local path holding the handle's content, downloading
// on a miss. An indexed file that has vanished from disk is fetched
// again.
func (c *Cache) Resolve(ctx context.Context, dl Downloader, handleID string) (string, error) {
	var path string
	err := c.db.QueryRowContext(ctx,
		`SELECT path FROM file_cache WHERE file_handle_id = ?`, handleID).Scan(&path)
	switch {
	case err == nil:
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("querying file cache: %w", err)
	}

	path = filepath.Join(c.dir, handleID+".json")
	size, err := dl.DownloadFileHandle(ctx, handleID, path)
	if err != nil {
		return "", err
	}

	upsert := `
		INSERT INTO file_cache (file_handle_id, path, size, downloaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_handle_id) DO UPDATE SET
			path = excluded.path,
			size = excluded.size,
			downloaded_at = excluded.downloaded_at
	`
	if _, err := c.db.ExecContext(ctx, upsert, handleID, path, size, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("indexing file handle %s: %w", handleID, err)
	}
	return path, nil
}

// Stats reports the number of indexed files and their total size.
func (c *Cache) Stats(ctx context.Context) (count int64, bytes int64, err error) {
	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM file_cache`).Scan(&count, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("reading cache stats: %w", err)
	}
	return count, bytes, nil
}
