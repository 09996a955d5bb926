package retrieval

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

// Cache persists embedded chunks across restarts so an unchanged corpus does
// not get re-embedded. Entries are keyed by source file and invalidated by
// content hash.
type Cache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS corpus_chunks (
	source      TEXT    NOT NULL,
	source_hash TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	page        INTEGER NOT NULL,
	content     TEXT    NOT NULL,
	vector      BLOB    NOT NULL,
	PRIMARY KEY (source, seq)
);`

// OpenCache opens (creating if needed) the sqlite cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached chunks for source if the stored hash matches.
func (c *Cache) Get(source, hash string) ([]EmbeddedChunk, bool, error) {
	rows, err := c.db.Query(
		`SELECT page, content, vector FROM corpus_chunks
		 WHERE source = ? AND source_hash = ? ORDER BY seq`,
		source, hash,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query cache for %s: %w", source, err)
	}
	defer rows.Close()

	var chunks []EmbeddedChunk
	for rows.Next() {
		var (
			page    int
			content string
			blob    []byte
		)
		if err := rows.Scan(&page, &content, &blob); err != nil {
			return nil, false, fmt.Errorf("scan cache row: %w", err)
		}
		var vector []float32
		if err := json.Unmarshal(blob, &vector); err != nil {
			return nil, false, fmt.Errorf("decode cached vector: %w", err)
		}
		chunks = append(chunks, EmbeddedChunk{
			Chunk:  Chunk{Text: content, Source: source, Page: page},
			Vector: vector,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(chunks) == 0 {
		return nil, false, nil
	}
	return chunks, true, nil
}

// Put replaces the cached chunks for source.
func (c *Cache) Put(source, hash string, chunks []EmbeddedChunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM corpus_chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("evict stale cache rows for %s: %w", source, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO corpus_chunks (source, source_hash, seq, page, content, vector)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cache insert: %w", err)
	}
	defer stmt.Close()

	for seq, chunk := range chunks {
		blob, err := json.Marshal(chunk.Vector)
		if err != nil {
			return fmt.Errorf("encode vector: %w", err)
		}
		if _, err := stmt.Exec(source, hash, seq, chunk.Page, chunk.Text, blob); err != nil {
			return fmt.Errorf("insert cache row: %w", err)
		}
	}

	return tx.Commit()
}
