package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	repo        TEXT NOT NULL,
	path        TEXT NOT NULL,
	url         TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	chunk_total INTEGER NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_repo ON entries(repo);
`

// Store is the single durable collection of a deployment. It is opened once
// at process start, shared by reference, and closed at shutdown. Multiplexing
// across source repositories happens through the repo metadata field, never
// through separate physical stores.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	lock *flock.Flock
	dims int

	// HNSW graph over the persisted vectors, rebuilt from SQLite on open.
	// String ids map to internal uint64 keys; deletes are lazy (the node
	// stays in the graph but drops out of the id maps).
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// Open opens (or creates) the store at dir for vectors of the given
// dimension. An empty dir opens an in-memory store for tests. A file lock on
// the directory guards against a second process mutating the same store.
func Open(dir string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dims)
	}

	s := &Store{
		dims:   dims,
		graph:  newGraph(),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}

	dsn := ":memory:"
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}

		s.lock = flock.New(filepath.Join(dir, "store.lock"))
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock store directory: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("store at %s is locked by another process", dir)
		}

		dsn = "file:" + filepath.Join(dir, "entries.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The in-memory DSN gives every pooled connection its own database, so
	// the pool is pinned to one connection.
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		s.unlock()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := s.rebuildGraph(); err != nil {
		_ = db.Close()
		s.unlock()
		return nil, err
	}

	return s, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// rebuildGraph loads every persisted vector into a fresh HNSW graph.
func (s *Store) rebuildGraph() error {
	rows, err := s.db.Query(`SELECT id, vector FROM entries`)
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scan vector row: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		if len(vec) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
		}

		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		loaded++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if loaded > 0 {
		slog.Debug("rebuilt vector graph", slog.Int("entries", loaded))
	}
	return nil
}

// Upsert persists entries and inserts their vectors into the graph.
// Existing ids are replaced.
func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, e := range entries {
		if len(e.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(e.Vector)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entries
			(id, repo, path, url, chunk_index, chunk_total, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		m := e.Metadata
		if _, err := stmt.ExecContext(ctx, e.ID, m.Repo, m.Path, m.URL, m.Index, m.Total, e.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	// Rows are durable; mirror them into the graph.
	for _, e := range entries {
		if oldKey, exists := s.idMap[e.ID]; exists {
			// Lazy replacement: orphan the old node rather than deleting it
			// from the graph.
			delete(s.keyMap, oldKey)
		}
		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, e.Vector))
		s.idMap[e.ID] = key
		s.keyMap[key] = e.ID
	}

	return nil
}

// Query returns up to k matches for the query vector, nearest first.
// An empty store returns an empty slice.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]QueryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []QueryMatch{}, nil
	}

	// Over-fetch to compensate for lazily deleted nodes still in the graph.
	orphans := s.graph.Len() - len(s.idMap)
	nodes := s.graph.Search(vector, k+orphans)

	matches := make([]QueryMatch, 0, k)
	for _, node := range nodes {
		if len(matches) == k {
			break
		}
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // orphaned by a lazy delete
		}

		var m QueryMatch
		m.ID = id
		m.Distance = s.graph.Distance(vector, node.Value)

		row := s.db.QueryRowContext(ctx,
			`SELECT repo, path, url, chunk_index, chunk_total, text FROM entries WHERE id = ?`, id)
		if err := row.Scan(&m.Metadata.Repo, &m.Metadata.Path, &m.Metadata.URL,
			&m.Metadata.Index, &m.Metadata.Total, &m.Text); err != nil {
			return nil, fmt.Errorf("load entry %s: %w", id, err)
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// GetByRepo returns the ids and metadata of every entry tagged with repo.
func (s *Store) GetByRepo(ctx context.Context, repo string) ([]string, []Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo, path, url, chunk_index, chunk_total FROM entries WHERE repo = ? ORDER BY id`, repo)
	if err != nil {
		return nil, nil, fmt.Errorf("query repo %s: %w", repo, err)
	}
	defer rows.Close()

	var ids []string
	var metas []Metadata
	for rows.Next() {
		var id string
		var m Metadata
		if err := rows.Scan(&id, &m.Repo, &m.Path, &m.URL, &m.Index, &m.Total); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		metas = append(metas, m)
	}
	return ids, metas, rows.Err()
}

// Delete removes entries by id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM entries WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete entry %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
	return nil
}

// Count returns the number of persisted entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Repos returns the distinct repository identifiers, sorted.
func (s *Store) Repos(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT repo FROM entries ORDER BY repo`)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	repos := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// Reset destroys every entry, yielding an empty store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("reset entries: %w", err)
	}

	s.graph = newGraph()
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
	return nil
}

// Dimensions returns the configured vector dimension.
func (s *Store) Dimensions() int { return s.dims }

// Close closes the database and releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	s.unlock()
	return err
}

func (s *Store) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}
