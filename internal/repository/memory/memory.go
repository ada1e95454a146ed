// Package memory is an in-process TenantRepository and UserRepository used by
// the "memory" store driver and by tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/tenantlock"
)

// Store keeps documents serialised as JSON so callers never share memory
// with the stored copy.
type Store struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	users map[string]domain.User
	locks *tenantlock.Locker
	now   func() time.Time
}

var (
	_ repository.TenantRepository = (*Store)(nil)
	_ repository.UserRepository   = (*Store)(nil)
)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		docs:  make(map[string][]byte),
		users: make(map[string]domain.User),
		locks: tenantlock.New(),
		now:   time.Now,
	}
}

// CreateUser inserts a user, rejecting duplicate emails.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	s.users[user.ID] = *user
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetUserByID retrieves a user by identifier.
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

// ListTenantIDs returns every stored tenant id in lexical order.
func (s *Store) ListTenantIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load returns a copy of the tenant document.
func (s *Store) Load(_ context.Context, tenantID string) (*domain.Document, error) {
	s.mu.RLock()
	raw, ok := s.docs[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return decode(raw)
}

// Update runs fn against the current document (or a fresh one) under the
// tenant's lock and stores the result.
func (s *Store) Update(ctx context.Context, tenantID string, fn repository.MutateFunc) (*domain.Document, error) {
	release := s.locks.Lock(tenantID)
	defer release()

	doc, err := s.Load(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		doc = domain.NewDocument(tenantID)
	} else if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.TenantID = tenantID
	doc.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.docs[tenantID] = raw
	s.mu.Unlock()
	return decode(raw)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func decode(raw []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
