package registry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const createCacheSQL = `CREATE TABLE IF NOT EXISTS wsdl_cache (
	url TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
)`

// WSDLCache keeps fetched service descriptions in a local SQLite file.
// Entries older than the TTL are ignored; a TTL <= 0 never expires.
type WSDLCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func OpenWSDLCache(ctx context.Context, path string, ttl time.Duration) (*WSDLCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrapf(err, "create cache dir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open wsdl cache")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createCacheSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init wsdl cache")
	}
	return &WSDLCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns a fresh cached body for url.
func (c *WSDLCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	var (
		body      []byte
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM wsdl_cache WHERE url = ?`, url).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read wsdl cache")
	}
	if c.ttl > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, nil
	}
	return body, true, nil
}

func (c *WSDLCache) Put(ctx context.Context, url string, body []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO wsdl_cache (url, body, fetched_at) VALUES (?, ?, ?)`,
		url, body, c.now().Unix())
	return errors.Wrap(err, "write wsdl cache")
}

func (c *WSDLCache) Close() error { return c.db.Close() }
