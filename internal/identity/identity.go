// Package identity defines the boundary to the external identity provider.
// The core only needs one opaque user identity and a change notification;
// sign-in flows and retry policy live outside this module.
package identity

import (
	"errors"
	"sync"
)

// ErrNotSignedIn is returned while no identity is available. The plan session
// stays in its not-loaded state until the provider reports one.
var ErrNotSignedIn = errors.New("identity: not signed in")

// Provider supplies the current user identity. Identity may become available
// asynchronously after startup; OnChange covers that case.
type Provider interface {
	// Identity returns the current opaque user identity, or ErrNotSignedIn.
	Identity() (string, error)
	// OnChange registers fn to be called with each new identity value.
	// The returned function unregisters fn.
	OnChange(fn func(userID string)) func()
}

// Static is a Provider with a fixed, config-sourced identity. It is the
// production provider for this single-user planner and the test fake: SetID
// simulates a sign-in completing after initial load.
type Static struct {
	mu        sync.Mutex
	userID    string
	nextSub   int
	listeners map[int]func(string)
}

func NewStatic(userID string) *Static {
	return &Static{
		userID:    userID,
		listeners: make(map[int]func(string)),
	}
}

func (s *Static) Identity() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", ErrNotSignedIn
	}
	return s.userID, nil
}

func (s *Static) OnChange(fn func(string)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SetID replaces the identity and notifies listeners.
func (s *Static) SetID(userID string) {
	s.mu.Lock()
	s.userID = userID
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(userID)
	}
}
