package videostore

import (
	"context"
	"sync"
	"time"

	"github.com/mediaqos/mediaqos/internal/model"
)

// MemoryStore keeps records in a mutex-guarded map. It backs local
// development without external services and doubles as the test fake.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.VideoRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.VideoRecord),
	}
}

func (m *MemoryStore) Create(_ context.Context, rec *model.VideoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.VideoID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	stored := *rec
	m.records[rec.VideoID] = &stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, videoID string) (*model.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	// Copy out so callers cannot mutate shared state.
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, videoID string, status model.VideoStatus, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[videoID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	if fields.S3Key != nil {
		rec.S3Key = *fields.S3Key
	}
	if fields.S3Bucket != nil {
		rec.S3Bucket = *fields.S3Bucket
	}
	if fields.FileSize != nil {
		rec.FileSize = *fields.FileSize
	}
	if fields.ProcessedAt != nil {
		t := *fields.ProcessedAt
		rec.ProcessedAt = &t
	}
	if fields.VideoURL != nil {
		rec.VideoURL = *fields.VideoURL
	}
	if fields.ErrorMessage != nil {
		rec.ErrorMessage = *fields.ErrorMessage
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) IncrementViews(_ context.Context, videoID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[videoID]
	if !ok {
		return ErrNotFound
	}
	rec.Views += delta
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ScanAll(_ context.Context) ([]*model.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.VideoRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}
