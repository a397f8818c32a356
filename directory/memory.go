package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/campustrack/authcore"
)

// Memory implements [authcore.AccountDirectory] and
// [authcore.ProfileResolver] in process. It backs tests and local
// development without Postgres.
type Memory struct {
	mu        sync.Mutex
	byID      map[string]authcore.Principal
	byContact map[string]string
	profiles  map[string]authcore.ResolvedProfile // keyed by contact
}

// NewMemory returns an empty in-process directory.
func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[string]authcore.Principal),
		byContact: make(map[string]string),
		profiles:  make(map[string]authcore.ResolvedProfile),
	}
}

// FindByContact implements [authcore.AccountDirectory].
func (m *Memory) FindByContact(ctx context.Context, contact string) (authcore.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byContact[contact]
	if !ok {
		return authcore.Principal{}, authcore.ErrAccountNotFound
	}
	return m.byID[id], nil
}

// FindByID implements [authcore.AccountDirectory].
func (m *Memory) FindByID(ctx context.Context, id string) (authcore.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return authcore.Principal{}, authcore.ErrAccountNotFound
	}
	return p, nil
}

// Create implements [authcore.AccountDirectory].
func (m *Memory) Create(ctx context.Context, contact string) (authcore.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byContact[contact]; exists {
		return authcore.Principal{}, authcore.ErrDuplicateContact
	}

	email, phone := authcore.SplitContact(contact)
	p := authcore.Principal{
		ID:    uuid.NewString(),
		Email: email,
		Phone: phone,
	}
	m.byID[p.ID] = p
	m.byContact[contact] = p.ID
	return p, nil
}

// PutProfile registers a profile for resolution by either of its contact
// identifiers.
func (m *Memory) PutProfile(profile authcore.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resolved := authcore.ResolvedProfile{Kind: profile.Kind(), Profile: profile}
	if profile.Email != "" {
		m.profiles[profile.Email] = resolved
	}
	if profile.Phone != "" {
		m.profiles[profile.Phone] = resolved
	}
}

// ResolveByContact implements [authcore.ProfileResolver].
func (m *Memory) ResolveByContact(ctx context.Context, email, phone string) (authcore.ResolvedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if email != "" {
		if resolved, ok := m.profiles[email]; ok {
			return resolved, nil
		}
	}
	if phone != "" {
		if resolved, ok := m.profiles[phone]; ok {
			return resolved, nil
		}
	}
	return authcore.ResolvedProfile{}, authcore.ErrProfileNotFound
}
