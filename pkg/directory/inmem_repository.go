package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]User
	organizations map[uuid.UUID]Organization
}

// NewInMemoryRepository creates a new in-memory directory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:         make(map[uuid.UUID]User),
		organizations: make(map[uuid.UUID]Organization),
	}
}

// AddUser seeds a user. When ID or timestamps are zero they are filled in.
func (r *InMemoryRepository) AddUser(user User) User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Status == "" {
		user.Status = UserStatusActive
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	r.users[user.ID] = user
	return user
}

// AddOrganization seeds an organization
func (r *InMemoryRepository) AddOrganization(org Organization) Organization {
	r.mu.Lock()
	defer r.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	r.organizations[org.ID] = org
	return org
}

// FindUser finds a user by id
func (r *InMemoryRepository) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := user
	return &copied, nil
}

// FindUserByEmail finds a user by email
func (r *InMemoryRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := user
			return &copied, nil
		}
	}
	return nil, nil
}

// FindOrganization finds an organization by id
func (r *InMemoryRepository) FindOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.organizations[id]
	if !ok {
		return nil, nil
	}
	copied := org
	return &copied, nil
}
