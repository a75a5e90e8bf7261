package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stakaya/planday/internal/model"
)

const defaultPollInterval = time.Second

// SQLiteStore keeps plan documents as JSON rows in a local sqlite database.
// Every write bumps a per-document revision; subscriptions poll the revision
// and deliver a snapshot whenever it moves, which preserves commit order.
type SQLiteStore struct {
	db           *sql.DB
	instance     string
	pollInterval time.Duration
}

// OpenSQLite opens (creating if needed) the plan database at path.
func OpenSQLite(ctx context.Context, path, instance string, pollInterval time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS plans (
	instance   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	date       TEXT NOT NULL,
	doc        TEXT NOT NULL,
	rev        INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (instance, user_id, date)
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create plans table: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &SQLiteStore{
		db:           db,
		instance:     instance,
		pollInterval: pollInterval,
	}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, userID, date string) (Snapshot, error) {
	snap, _, err := s.loadRev(ctx, userID, date)
	return snap, err
}

func (s *SQLiteStore) loadRev(ctx context.Context, userID, date string) (Snapshot, int64, error) {
	var doc string
	var rev int64
	err := s.db.QueryRowContext(ctx, `
SELECT doc, rev FROM plans WHERE instance = ? AND user_id = ? AND date = ?`,
		s.instance, userID, date).Scan(&doc, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{Exists: false}, 0, nil
	}
	if err != nil {
		return Snapshot{}, 0, fmt.Errorf("query plan: %w", err)
	}

	var plan model.DayPlan
	if err := json.Unmarshal([]byte(doc), &plan); err != nil {
		return Snapshot{}, 0, fmt.Errorf("unmarshal plan doc: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Snapshot{}, 0, fmt.Errorf("invalid plan doc: %w", err)
	}
	return Snapshot{Plan: &plan, Exists: true}, rev, nil
}

func (s *SQLiteStore) Write(ctx context.Context, userID string, plan model.DayPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid plan: %w", err)
	}
	doc, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan doc: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO plans (instance, user_id, date, doc, rev, updated_at)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(instance, user_id, date) DO UPDATE SET
	doc = excluded.doc,
	rev = plans.rev + 1,
	updated_at = excluded.updated_at`,
		s.instance, userID, plan.Date, string(doc), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// Subscribe polls the document revision and delivers a snapshot at start and
// whenever the revision changes. Cancel blocks until the polling goroutine
// has exited.
func (s *SQLiteStore) Subscribe(ctx context.Context, userID, date string, onSnapshot func(Snapshot), onError func(error)) (CancelFunc, error) {
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var lastRev int64
		var lastExists, delivered bool

		poll := func() {
			snap, rev, err := s.loadRev(ctx, userID, date)
			if err != nil {
				if ctx.Err() == nil {
					onError(err)
				}
				return
			}
			if delivered && rev == lastRev && snap.Exists == lastExists {
				return
			}
			delivered = true
			lastRev = rev
			lastExists = snap.Exists
			onSnapshot(snap)
		}

		poll()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
	return cancel, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
