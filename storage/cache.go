package storage

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PageCacheStore persists fetched page bodies in SQLite so repeated
// searches within the TTL never hit the network.
type PageCacheStore struct {
	db *sql.DB
}

func NewPageCacheStore(dbPath string) (*PageCacheStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &PageCacheStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *PageCacheStore) Close() error {
	return s.db.Close()
}

func (s *PageCacheStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS page_cache (
		key TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_page_cache_fetched ON page_cache(fetched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *PageCacheStore) Get(key string, ttl time.Duration) (string, bool) {
	var body string
	var fetchedAt time.Time
	err := s.db.QueryRow(
		`SELECT body, fetched_at FROM page_cache WHERE key = ?`, key,
	).Scan(&body, &fetchedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Warning: cache read failed for %s: %v", key, err)
		}
		return "", false
	}
	if time.Since(fetchedAt) > ttl {
		return "", false
	}
	return body, true
}

func (s *PageCacheStore) Put(key, body string) error {
	_, err := s.db.Exec(
		`INSERT INTO page_cache (key, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		key, body, time.Now(),
	)
	return err
}

// Prune removes entries older than maxAge and reports how many rows
// were deleted.
func (s *PageCacheStore) Prune(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM page_cache WHERE fetched_at < ?`, time.Now().Add(-maxAge),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
