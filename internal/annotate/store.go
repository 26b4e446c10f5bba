package annotate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
)

var (
	// ErrNotFound is returned by Store.Get when a key has no entry.
	ErrNotFound = errors.New("annotation not found")
	// ErrQuotaExceeded is returned when a write would grow the store past its quota.
	ErrQuotaExceeded = errors.New("annotation store quota exceeded")
)

// Key returns the storage key of a page's annotation layer.
func Key(page int) string {
	return fmt.Sprintf("highlights_page_%d", page)
}

// Entry describes one stored annotation layer.
type Entry struct {
	Key       string    `json:"key"`
	Page      int       `json:"page"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int       `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a key-value store of encoded annotation layers.
type Store interface {
	Put(ctx context.Context, key string, page int, data []byte, width, height int) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Entry, error)
}

// SQLStore keeps annotation layers in the local sqlite database.
type SQLStore struct {
	db *db.DB
	// quota caps the total stored bytes; 0 means unlimited.
	quota int64
}

// NewSQLStore creates a store backed by database. A positive quota bounds
// the total size of all layers.
func NewSQLStore(database *db.DB, quota int64) *SQLStore {
	return &SQLStore{db: database, quota: quota}
}

func (s *SQLStore) Put(ctx context.Context, key string, page int, data []byte, width, height int) error {
	if s.quota > 0 {
		var others int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(LENGTH(data)), 0) FROM annotations WHERE key != ?`, key,
		).Scan(&others)
		if err != nil {
			return fmt.Errorf("measuring annotation store: %w", err)
		}
		if others+int64(len(data)) > s.quota {
			return fmt.Errorf("storing %s (%d bytes): %w", key, len(data), ErrQuotaExceeded)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (key, page, data, width, height, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   page = excluded.page, data = excluded.data,
		   width = excluded.width, height = excluded.height,
		   updated_at = excluded.updated_at`,
		key, page, data, width, height, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM annotations WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE key = ?`, key)
	return err
}

func (s *SQLStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, page, width, height, LENGTH(data), updated_at
		 FROM annotations ORDER BY page`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing annotations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Page, &e.Width, &e.Height, &e.Bytes, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning annotation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	Entry
	data []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(_ context.Context, key string, page int, data []byte, width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[key] = memoryEntry{
		Entry: Entry{Key: key, Page: page, Width: width, Height: height, Bytes: len(data), UpdatedAt: time.Now().UTC()},
		data:  buf,
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.data, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e.Entry)
	}
	return entries, nil
}
