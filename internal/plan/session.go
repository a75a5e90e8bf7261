package plan

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/stakaya/planday/internal/catalog"
	"github.com/stakaya/planday/internal/events"
	"github.com/stakaya/planday/internal/identity"
	"github.com/stakaya/planday/internal/model"
	"github.com/stakaya/planday/internal/store"
)

// ErrNotLoaded is returned for mutations dispatched before a first snapshot
// (or subscription error) has resolved the session's plan.
var ErrNotLoaded = errors.New("plan: day plan not loaded yet")

// Session owns the authoritative in-memory DayPlan for one calendar date.
//
// Mutations apply optimistically: the new snapshot replaces the current one
// synchronously, is published on the bus, and only then is handed to the
// store for asynchronous write-through. Write failures are logged, never
// retried and never rolled back. A delivered remote snapshot always replaces
// the local plan wholesale, even when it discards a pending optimistic edit.
type Session struct {
	store  store.Store
	ids    identity.Provider
	bus    *events.Bus
	logger *log.Logger
	date   string

	mu      sync.Mutex
	userID  string
	current model.DayPlan
	loaded  bool

	subMu     sync.Mutex
	cancelSub store.CancelFunc

	unsubIdentity func()
	writes        sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewSession creates a session for the given date key.
func NewSession(st store.Store, ids identity.Provider, bus *events.Bus, logger *log.Logger, date string) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		store:  st,
		ids:    ids,
		bus:    bus,
		logger: logger,
		date:   date,
	}
}

// Start resolves the user identity and subscribes to the remote document.
// When no identity is available yet the session stays in its not-loaded
// state and waits for the provider's change notification; sign-in retry
// policy belongs to the provider, not here.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.unsubIdentity = s.ids.OnChange(func(userID string) {
		s.logger.Printf("identity changed, resubscribing user=%s date=%s", userID, s.date)
		s.resubscribe(userID)
	})

	userID, err := s.ids.Identity()
	if err != nil {
		s.logger.Printf("identity unavailable, plan not loaded: %v", err)
		return
	}
	s.resubscribe(userID)
}

func (s *Session) resubscribe(userID string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	if userID == "" {
		return
	}

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	cancel, err := s.store.Subscribe(s.ctx, userID, s.date, s.onSnapshot, s.onSnapshotError)
	if err != nil {
		s.logger.Printf("subscribe user=%s date=%s: %v", userID, s.date, err)
		s.mu.Lock()
		s.loaded = true // clear the loading state; plan stays as it was
		s.mu.Unlock()
		return
	}
	s.cancelSub = cancel
}

// onSnapshot adopts a delivered remote snapshot as the new authoritative
// plan. An absent document is the one case where the session writes without
// a user intent: it materializes and persists the seeded default plan.
func (s *Session) onSnapshot(snap store.Snapshot) {
	var seeded bool
	s.mu.Lock()
	if snap.Exists {
		s.current = snap.Plan.Clone()
	} else {
		s.current = catalog.NewDefaultPlan(s.date)
		seeded = true
	}
	s.loaded = true
	plan := s.current.Clone()
	userID := s.userID
	s.mu.Unlock()

	s.publishPlan(plan)
	if seeded {
		s.logger.Printf("no plan document for user=%s date=%s, seeding default", userID, s.date)
		s.writeThrough(userID, plan)
	}
}

func (s *Session) onSnapshotError(err error) {
	s.logger.Printf("snapshot delivery failed: %v", err)
	s.mu.Lock()
	s.loaded = true // stale-but-consistent; never stuck loading
	s.mu.Unlock()
}

// Plan returns a copy of the current plan and whether it has loaded.
func (s *Session) Plan() (model.DayPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone(), s.loaded
}

// Completion returns the completion percentage of the current plan.
func (s *Session) Completion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CompletionPercentage(s.current)
}

// apply runs one pure operation against the current snapshot, adopts the
// result, publishes it, and dispatches the write-through. The new value is
// visible to readers before the write is even dispatched.
func (s *Session) apply(op func(model.DayPlan) (model.DayPlan, error)) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	next, err := op(s.current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	plan := s.current.Clone()
	userID := s.userID
	s.mu.Unlock()

	s.publishPlan(plan)
	s.writeThrough(userID, plan)
	return nil
}

func (s *Session) Toggle(taskID string) error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return ToggleTask(p, taskID), nil
	})
}

func (s *Session) Add() error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return AddTask(p), nil
	})
}

func (s *Session) Delete(taskID string) error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return DeleteTask(p, taskID), nil
	})
}

func (s *Session) EditField(taskID, field, value string) error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return EditTaskField(p, taskID, field, value)
	})
}

func (s *Session) SetEnergy(level model.EnergyLevel) error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return SetEnergyLevel(p, level), nil
	})
}

func (s *Session) SetWorkout(enabled bool) error {
	return s.apply(func(p model.DayPlan) (model.DayPlan, error) {
		return SetWorkoutMode(p, enabled), nil
	})
}

func (s *Session) publishPlan(p model.DayPlan) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.EventPlanUpdated, map[string]any{
		"date":       p.Date,
		"tasks":      len(p.Tasks),
		"completion": CompletionPercentage(p),
	})
}

// writeThrough persists the plan asynchronously. Best effort: a failure is
// logged and the optimistic local value remains the system of record until
// the next successful remote notification.
func (s *Session) writeThrough(userID string, p model.DayPlan) {
	if userID == "" {
		return
	}
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.store.Write(s.ctx, userID, p); err != nil {
			s.logger.Printf("write-through failed user=%s date=%s: %v", userID, p.Date, err)
		}
	}()
}

// Flush waits for all dispatched write-throughs to finish.
func (s *Session) Flush() {
	s.writes.Wait()
}

// Close cancels the subscription and identity listener and drains pending
// writes. No snapshot callback fires after Close returns.
func (s *Session) Close() {
	if s.unsubIdentity != nil {
		s.unsubIdentity()
	}
	s.subMu.Lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.subMu.Unlock()
	s.Flush()
	if s.cancel != nil {
		s.cancel()
	}
}
