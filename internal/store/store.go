package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// Record is one row of a table, as decoded from JSON. Numeric fields decode
// as float64; use ID / ToInt when comparing ids.
type Record = map[string]any

// Store persists one JSON array file per table under a database directory.
// Every mutation rewrites the whole file, kept sorted by ascending id.
// A per-table mutex serializes writers within this process; there is no
// cross-process protection.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates the database directory if needed and returns a Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the database directory path.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *Store) lock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[table]
	if !ok {
		l = &sync.Mutex{}
		s.locks[table] = l
	}
	return l
}

// Exists reports whether the table file is present on disk.
func (s *Store) Exists(table string) bool {
	_, err := os.Stat(s.path(table))
	return err == nil
}

// Read returns all records of a table.
func (s *Store) Read(table string) ([]Record, error) {
	raw, err := os.ReadFile(s.path(table))
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", table, err)
	}
	var data []Record
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", table, err)
	}
	return data, nil
}

// Write replaces the table content, sorted by ascending id.
func (s *Store) Write(table string, data []Record) error {
	sort.SliceStable(data, func(i, j int) bool {
		return ToInt(data[i]["id"]) < ToInt(data[j]["id"])
	})
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table %s: %w", table, err)
	}
	if err := os.WriteFile(s.path(table), raw, 0o644); err != nil {
		return fmt.Errorf("write table %s: %w", table, err)
	}
	return nil
}

// NextID returns max(id)+1, or 1 for an empty table. Ids are never reused
// within a table's lifetime because records stay sorted and the max only grows.
func NextID(data []Record) int {
	next := 1
	for _, rec := range data {
		if id := ToInt(rec["id"]); id >= next {
			next = id + 1
		}
	}
	return next
}

// Timestamp returns the current time as an ISO-8601 UTC string.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// GetAll returns the table's records, optionally filtered by a where map.
// Array-valued where entries match records whose field equals any element.
func (s *Store) GetAll(table string, where map[string]any) ([]Record, error) {
	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}
	if len(where) == 0 {
		return data, nil
	}
	var out []Record
	for _, rec := range data {
		if matchesWhere(rec, where) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetByID returns the record with the given id, or ErrNotFound.
func (s *Store) GetByID(table string, id int) (Record, error) {
	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}
	for _, rec := range data {
		if ToInt(rec["id"]) == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// Create appends a record with a fresh id and creation timestamps.
func (s *Store) Create(table string, rec Record) (Record, error) {
	l := s.lock(table)
	l.Lock()
	defer l.Unlock()

	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}

	now := Timestamp()
	created := Record{}
	for k, v := range rec {
		created[k] = v
	}
	created["id"] = NextID(data)
	created["created_at"] = now
	created["updated_at"] = now

	data = append(data, created)
	if err := s.Write(table, data); err != nil {
		return nil, err
	}
	return created, nil
}

// CreateMany appends several records in one write, assigning sequential ids.
func (s *Store) CreateMany(table string, recs []Record) ([]Record, error) {
	l := s.lock(table)
	l.Lock()
	defer l.Unlock()

	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}

	now := Timestamp()
	next := NextID(data)
	created := make([]Record, 0, len(recs))
	for _, rec := range recs {
		c := Record{}
		for k, v := range rec {
			c[k] = v
		}
		c["id"] = next
		c["created_at"] = now
		c["updated_at"] = now
		next++
		created = append(created, c)
		data = append(data, c)
	}
	if err := s.Write(table, data); err != nil {
		return nil, err
	}
	return created, nil
}

// Update merges the given fields into the record with the given id.
// id and created_at are immutable; updated_at is refreshed.
func (s *Store) Update(table string, id int, updates Record) (Record, error) {
	l := s.lock(table)
	l.Lock()
	defer l.Unlock()

	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}

	for i, rec := range data {
		if ToInt(rec["id"]) != id {
			continue
		}
		merged := Record{}
		for k, v := range rec {
			merged[k] = v
		}
		for k, v := range updates {
			merged[k] = v
		}
		merged["id"] = rec["id"]
		merged["created_at"] = rec["created_at"]
		merged["updated_at"] = Timestamp()

		data[i] = merged
		if err := s.Write(table, data); err != nil {
			return nil, err
		}
		return merged, nil
	}
	return nil, ErrNotFound
}

// Delete removes the record with the given id, or returns ErrNotFound.
func (s *Store) Delete(table string, id int) error {
	l := s.lock(table)
	l.Lock()
	defer l.Unlock()

	data, err := s.Read(table)
	if err != nil {
		return err
	}

	kept := data[:0]
	found := false
	for _, rec := range data {
		if ToInt(rec["id"]) == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return ErrNotFound
	}
	return s.Write(table, kept)
}

// IsReferenced reports whether any record in table carries the id in the
// given field. The field may hold a bare id or a list of ids.
func (s *Store) IsReferenced(table, field string, id int) (bool, error) {
	data, err := s.Read(table)
	if err != nil {
		return false, err
	}
	for _, rec := range data {
		if referencesID(rec[field], id) {
			return true, nil
		}
	}
	return false, nil
}

// References returns all records in table whose field carries the id.
func (s *Store) References(table, field string, id int) ([]Record, error) {
	data, err := s.Read(table)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range data {
		if referencesID(rec[field], id) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ToInt converts a JSON-decoded numeric value to int. Non-numeric values
// yield 0.
func ToInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// IsNumber reports whether a decoded JSON value is numeric.
func IsNumber(v any) bool {
	switch v.(type) {
	case float64, int, int64, json.Number:
		return true
	default:
		return false
	}
}

func referencesID(v any, id int) bool {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if IsNumber(item) && ToInt(item) == id {
				return true
			}
		}
		return false
	default:
		return IsNumber(v) && ToInt(v) == id
	}
}

func matchesWhere(rec Record, where map[string]any) bool {
	for key, want := range where {
		have := rec[key]
		if list, ok := want.([]any); ok {
			matched := false
			for _, item := range list {
				if looseEqual(have, item) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !looseEqual(have, want) {
			return false
		}
	}
	return true
}

// looseEqual compares a stored value against a query value, tolerating the
// int/float64 mismatch between parsed query params and decoded JSON.
func looseEqual(a, b any) bool {
	if IsNumber(a) && IsNumber(b) {
		return ToInt(a) == ToInt(b)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
