package authkit

import (
	"context"
	"sync"
)

// MemStore is an in-memory UserStore for tests, examples, and prototyping.
// Production deployments implement UserStore over their own database.
type MemStore struct {
	mu         sync.RWMutex
	byID       map[string]User
	byEmail    map[string]string
	byProvider map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:       make(map[string]User),
		byEmail:    make(map[string]string),
		byProvider: make(map[string]string),
	}
}

func providerKey(provider, providerID string) string {
	return provider + "\x00" + providerID
}

func (s *MemStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemStore) FindByProvider(_ context.Context, provider, providerID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byProvider[providerKey(provider, providerID)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email != "" {
		if _, exists := s.byEmail[user.Email]; exists {
			return ErrDuplicateEmail
		}
	}

	s.byID[user.ID] = user
	if user.Email != "" {
		s.byEmail[user.Email] = user.ID
	}
	if user.Provider != "" {
		s.byProvider[providerKey(user.Provider, user.ProviderID)] = user.ID
	}
	return nil
}

func (s *MemStore) Save(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	if prev.Email != user.Email {
		delete(s.byEmail, prev.Email)
		if user.Email != "" {
			s.byEmail[user.Email] = user.ID
		}
	}

	s.byID[user.ID] = user
	return nil
}
