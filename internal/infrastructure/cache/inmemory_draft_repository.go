package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
)

// draftEntry is a serialized draft with its expiry
type draftEntry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryDraftRepository implements stock.DraftRepository with an in-memory map.
// Drafts are stored serialized so callers never share pointers with the store.
// Suitable for single-instance deployments and testing.
type InMemoryDraftRepository struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]draftEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDraftRepository creates a repository whose drafts expire ttl after their last save.
// It starts a background goroutine to purge expired drafts.
func NewInMemoryDraftRepository(ttl time.Duration) *InMemoryDraftRepository {
	r := &InMemoryDraftRepository{
		entries:  make(map[uuid.UUID]draftEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Save creates or updates a draft and refreshes its expiry
func (r *InMemoryDraftRepository) Save(ctx context.Context, draft *stock.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[draft.ID] = draftEntry{data: data, expiresAt: r.now().Add(r.ttl)}
	return nil
}

// FindByID returns a copy of the stored draft
func (r *InMemoryDraftRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Draft, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok || !r.now().Before(e.expiresAt) {
		return nil, shared.ErrDraftNotFound
	}

	var draft stock.Draft
	if err := json.Unmarshal(e.data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &draft, nil
}

// Delete removes a draft. Deleting an unknown draft is not an error.
func (r *InMemoryDraftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (r *InMemoryDraftRepository) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
	})
	return nil
}

// Size returns the number of stored drafts, expired ones included until the next purge
func (r *InMemoryDraftRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *InMemoryDraftRepository) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *InMemoryDraftRepository) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, id)
		}
	}
}

var _ stock.DraftRepository = (*InMemoryDraftRepository)(nil)
