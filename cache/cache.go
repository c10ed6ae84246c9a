// Package cache stores compiled chunks in SQLite so unchanged scripts skip
// the lexer, parser and compiler on the next run.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/spacey-js/spacey/vm"
	"github.com/spacey-js/spacey/vm/dist"
)

// Cache is a persistent map from source text to compiled chunk.
type Cache struct {
	db      *sql.DB
	path    string
	version string
	owner   string
	log     commonlog.Logger
	mu      sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats summarizes the cache contents and the lookups served since Open.
type Stats struct {
	Entries int
	Bytes   int64
	Hits    int64
	Misses  int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithEngineVersion tags written rows with v. Rows written by another
// version miss.
func WithEngineVersion(v string) Option {
	return func(c *Cache) { c.version = v }
}

// WithOwner records id as the writer of new rows.
func WithOwner(id string) Option {
	return func(c *Cache) { c.owner = id }
}

// Open opens or creates the cache database at path. The special path
// ":memory:" keeps the cache in memory.
func Open(path string, opts ...Option) (*Cache, error) {
	c := &Cache{path: path, log: commonlog.GetLogger("spacey.cache")}
	for _, opt := range opts {
		opt(c)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	c.db = db

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		key        TEXT PRIMARY KEY,
		mode       TEXT NOT NULL,
		engine     TEXT NOT NULL,
		owner      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data       BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}
	c.log.Debugf("opened %s (engine %q)", path, c.version)
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database location.
func (c *Cache) Path() string { return c.path }

// Key returns the cache key for src compiled in the given mode.
func Key(src string, ts bool) string {
	h := sha256.New()
	h.Write([]byte(mode(ts)))
	h.Write([]byte{0})
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

func mode(ts bool) string {
	if ts {
		return "ts"
	}
	return "js"
}

// Get returns the chunk cached for src. A stale or undecodable row is
// reported as a miss.
func (c *Cache) Get(src string, ts bool) (*vm.Chunk, bool, error) {
	key := Key(src, ts)
	var engine string
	var data []byte
	err := c.db.QueryRow("SELECT engine, data FROM chunks WHERE key = ?", key).Scan(&engine, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.misses.Add(1)
			c.log.Debugf("miss %s", key[:12])
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: querying chunk: %w", err)
	}
	if engine != c.version {
		c.misses.Add(1)
		c.log.Debugf("stale %s: written by engine %q", key[:12], engine)
		return nil, false, nil
	}
	chunk, err := dist.UnmarshalChunk(data)
	if err != nil {
		c.misses.Add(1)
		c.log.Warningf("dropping undecodable entry %s: %v", key[:12], err)
		if _, derr := c.db.Exec("DELETE FROM chunks WHERE key = ?", key); derr != nil {
			return nil, false, fmt.Errorf("cache: deleting corrupt chunk: %w", derr)
		}
		return nil, false, nil
	}
	c.hits.Add(1)
	c.log.Debugf("hit %s", key[:12])
	return chunk, true, nil
}

// Put stores chunk as the compiled form of src, replacing any earlier row.
func (c *Cache) Put(src string, ts bool, chunk *vm.Chunk) error {
	data, err := dist.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("cache: encoding chunk: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (key, mode, engine, owner, created_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		Key(src, ts), mode(ts), c.version, c.owner, time.Now().Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("cache: saving chunk: %w", err)
	}
	return nil
}

// Delete removes the entry for src, if any.
func (c *Cache) Delete(src string, ts bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Exec("DELETE FROM chunks WHERE key = ?", Key(src, ts)); err != nil {
		return fmt.Errorf("cache: deleting chunk: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("cache: clearing: %w", err)
	}
	return nil
}

// Stats reports the number of rows, their total size, and the hit and
// miss counts of this handle.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM chunks").Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: reading stats: %w", err)
	}
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	return s, nil
}
