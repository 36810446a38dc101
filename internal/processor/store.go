package processor

import (
	"sync"
	"time"

	"github.com/cortexflow/scheduler-core/internal/model"
)

// recordStore is the Request Processor's exclusively-owned in-memory
// lifecycle map, concurrent-safe per spec.md §5 ("must be safe for
// concurrent reads and writes"). It gives record access a single owning
// type instead of scattering sync.Map calls through the processor, the
// way the teacher gives Redis access a single owning RedisQueue type.
type recordStore struct {
	mu      sync.RWMutex
	records map[string]*model.RequestRecord
}

func newRecordStore() *recordStore {
	return &recordStore{records: make(map[string]*model.RequestRecord)}
}

func (s *recordStore) create(rec *model.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RequestID] = rec
}

func (s *recordStore) get(id string) (*model.RequestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Snapshot(), true
}

// upsert creates the record if missing (reporting that it did through the
// returned bool, which UpdateRequestStatus logs per SPEC_FULL.md's
// resolution of the §9 Open Question), else updates status/metadata in
// place and bumps UpdatedAt strictly forward.
func (s *recordStore) upsert(id string, status model.Status, metadata map[string]interface{}) (*model.RequestRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, existed := s.records[id]
	now := time.Now()
	if !existed {
		rec = &model.RequestRecord{
			RequestID: id,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
			Metadata:  map[string]interface{}{},
		}
		s.records[id] = rec
	} else {
		if !now.After(rec.UpdatedAt) {
			now = rec.UpdatedAt.Add(time.Nanosecond)
		}
		rec.Status = status
		rec.UpdatedAt = now
		if rec.Metadata == nil {
			rec.Metadata = map[string]interface{}{}
		}
	}
	for k, v := range metadata {
		rec.Metadata[k] = v
	}
	return rec.Snapshot(), !existed
}

func (s *recordStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}
