package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/connect/pkg/journal"
)

// MemoryStorage keeps records in a map. Records are lost on restart.
type MemoryStorage struct {
	records map[string]*journal.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*journal.Record),
	}
}

// Store saves a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *journal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Query returns copies of the matching records, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.page(query), nil
}

// QueryStream sends the matching records over a channel, newest first.
func (s *MemoryStorage) QueryStream(ctx context.Context, query *journal.Query) (<-chan *journal.Record, <-chan error, error) {
	s.mu.RLock()
	results := s.page(query)
	s.mu.RUnlock()

	recordsCh := make(chan *journal.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		for _, record := range results {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, record := range s.records {
		if query.Matches(record) {
			n++
		}
	}
	return n, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*journal.Record)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// page filters, orders and slices the records. Callers hold s.mu.
func (s *MemoryStorage) page(query *journal.Query) []*journal.Record {
	results := make([]*journal.Record, 0, len(s.records))
	for _, record := range s.records {
		if query.Matches(record) {
			cp := *record
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].ID > results[j].ID
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if query.Offset >= len(results) {
		return []*journal.Record{}
	}
	results = results[query.Offset:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results
}
