// Package store defines the remote document store boundary for day plans and
// provides the file-backed and sqlite-backed implementations. One document
// exists per (user identity, calendar date), partitioned by application
// instance. Stores replace documents wholesale; merging is never attempted.
package store

import (
	"context"

	"github.com/stakaya/planday/internal/model"
)

// Snapshot is one complete remote observation of a plan document: either the
// document body or the fact that it does not exist.
type Snapshot struct {
	Plan   *model.DayPlan
	Exists bool
}

// CancelFunc tears down a subscription. After it returns, no further callback
// fires.
type CancelFunc func()

// Store is the contract between the plan session and a remote document store.
//
// Subscribe delivers a snapshot at least once at subscription start and once
// per committed change afterwards, in commit order. Delivery failures go to
// onError; the caller's plan state stays whatever it last was.
type Store interface {
	Load(ctx context.Context, userID, date string) (Snapshot, error)
	Write(ctx context.Context, userID string, plan model.DayPlan) error
	Subscribe(ctx context.Context, userID, date string, onSnapshot func(Snapshot), onError func(error)) (CancelFunc, error)
	Close() error
}
