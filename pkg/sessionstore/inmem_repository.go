package sessionstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage.
// Intended for tests and single-process local runs.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord   // jti -> record
	byUser   map[uuid.UUID][]string      // userID -> jtis in creation order
	seq      int64                       // breaks CreatedAt ties between fast successive inserts
}

// NewInMemoryRepository creates a new in-memory session repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]*SessionRecord),
		byUser:   make(map[uuid.UUID][]string),
	}
}

// Persist inserts a new session record
func (r *InMemoryRepository) Persist(ctx context.Context, params CreateSessionParams) (*SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[params.JTI]; exists {
		return nil, ErrDuplicateJTI
	}

	r.seq++
	record := &SessionRecord{
		ID:             uuid.New(),
		UserID:         params.UserID,
		ImpersonatorID: params.ImpersonatorID,
		JTI:            params.JTI,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      time.Now().UTC().Add(time.Duration(r.seq) * time.Nanosecond),
	}

	r.sessions[params.JTI] = record
	r.byUser[params.UserID] = append(r.byUser[params.UserID], params.JTI)

	copied := *record
	return &copied, nil
}

// IsActive reports whether a non-revoked record exists for jti
func (r *InMemoryRepository) IsActive(ctx context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.sessions[jti]
	if !ok {
		return false, nil
	}
	return record.RevokedAt == nil, nil
}

// Revoke marks the matching record revoked; idempotent
func (r *InMemoryRepository) Revoke(ctx context.Context, userID uuid.UUID, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[jti]
	if !ok || record.UserID != userID || record.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	record.RevokedAt = &now
	return nil
}

// LatestForUser returns the most-recently-created record for the user
func (r *InMemoryRepository) LatestForUser(ctx context.Context, userID uuid.UUID) (*SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jtis := r.byUser[userID]
	if len(jtis) == 0 {
		return nil, nil
	}

	record := r.sessions[jtis[len(jtis)-1]]
	copied := *record
	return &copied, nil
}

// ListActiveForUser lists non-revoked, unexpired records for the user, newest first
func (r *InMemoryRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now().UTC()
	var records []SessionRecord
	for _, jti := range r.byUser[userID] {
		record := r.sessions[jti]
		if record.RevokedAt != nil || !record.ExpiresAt.After(now) {
			continue
		}
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
