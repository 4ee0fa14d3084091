package iam

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store, used by tests and single-process
// setups that do not need the persistent registry.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User       // guid -> user
	creds map[string]*Credential // access key -> credential
}

// NewMemoryStore creates an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		creds: make(map[string]*Credential),
	}
}

func (s *MemoryStore) GetUserByAccessKey(ctx context.Context, accessKey string) (*User, *Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[accessKey]
	if !ok {
		return nil, nil, ErrAccessKeyNotFound
	}
	user, ok := s.users[cred.UserGUID]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	return user, cred, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, guid string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[guid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.GUID]; exists {
		return ErrUserAlreadyExists
	}
	s.users[user.GUID] = user
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[guid]; !exists {
		return ErrUserNotFound
	}
	delete(s.users, guid)
	for key, cred := range s.creds {
		if cred.UserGUID == guid {
			delete(s.creds, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	return users, nil
}

func (s *MemoryStore) CreateCredential(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.creds[cred.AccessKey]; exists {
		return ErrAccessKeyTaken
	}
	if _, exists := s.users[cred.UserGUID]; !exists {
		return ErrUserNotFound
	}
	s.creds[cred.AccessKey] = cred
	return nil
}

func (s *MemoryStore) DeleteCredential(ctx context.Context, accessKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.creds[accessKey]; !exists {
		return ErrCredentialNotFound
	}
	delete(s.creds, accessKey)
	return nil
}
