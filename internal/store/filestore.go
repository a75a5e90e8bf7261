package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/stakaya/planday/internal/lock"
	"github.com/stakaya/planday/internal/model"
	yamlio "github.com/stakaya/planday/internal/yaml"
)

// FileStore keeps one YAML document per (user, date) under
// <root>/<instance>/<user>/<date>.yaml. Writes are atomic and serialized per
// document path; subscriptions are driven by fsnotify on the user directory.
//
// A document that no longer parses or validates is quarantined and reported
// absent, so the session reseeds a default plan instead of staying wedged on
// a corrupt file.
type FileStore struct {
	root     string
	instance string
	locks    *lock.MutexMap
	group    singleflight.Group
}

// NewFileStore creates a file store rooted at root for one application
// instance partition.
func NewFileStore(root, instance string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, instance), 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{
		root:     root,
		instance: instance,
		locks:    lock.NewMutexMap(),
	}, nil
}

func (s *FileStore) userDir(userID string) string {
	return filepath.Join(s.root, s.instance, userID)
}

func (s *FileStore) docPath(userID, date string) string {
	return filepath.Join(s.userDir(userID), date+".yaml")
}

func (s *FileStore) quarantineDir() string {
	return filepath.Join(s.root, s.instance, "quarantine")
}

// Load reads the document for (userID, date). Concurrent loads of the same
// document share one read.
func (s *FileStore) Load(ctx context.Context, userID, date string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	path := s.docPath(userID, date)
	v, err, _ := s.group.Do(path, func() (any, error) {
		return s.loadPath(path)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (s *FileStore) loadPath(path string) (Snapshot, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Snapshot{Exists: false}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read plan document: %w", err)
	}

	plan, err := decodePlan(content)
	if err == nil {
		return Snapshot{Plan: plan, Exists: true}, nil
	}

	// Corrupt document: quarantine it, then try the .bak sibling once.
	if _, qerr := yamlio.Quarantine(s.quarantineDir(), path); qerr != nil {
		return Snapshot{}, fmt.Errorf("quarantine corrupt document: %w", qerr)
	}
	if rerr := yamlio.RestoreFromBackup(path); rerr != nil {
		// Unrecoverable; report absent so the caller reseeds.
		return Snapshot{Exists: false}, nil
	}
	restored, rerr := os.ReadFile(path)
	if rerr != nil {
		return Snapshot{}, fmt.Errorf("read restored document: %w", rerr)
	}
	plan, perr := decodePlan(restored)
	if perr != nil {
		return Snapshot{Exists: false}, nil
	}
	return Snapshot{Plan: plan, Exists: true}, nil
}

func decodePlan(content []byte) (*model.DayPlan, error) {
	var plan model.DayPlan
	if err := yamlv3.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan document: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan document: %w", err)
	}
	return &plan, nil
}

// Write persists the plan document for its own date atomically.
func (s *FileStore) Write(ctx context.Context, userID string, plan model.DayPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid plan: %w", err)
	}

	if err := os.MkdirAll(s.userDir(userID), 0755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}

	path := s.docPath(userID, plan.Date)
	s.locks.Lock(path)
	defer s.locks.Unlock(path)
	return yamlio.AtomicWrite(path, plan)
}

// Subscribe watches the user directory and delivers a snapshot at start and
// after every committed change to the document. The returned cancel function
// blocks until the delivery goroutine has exited, so no callback fires after
// cancellation.
func (s *FileStore) Subscribe(ctx context.Context, userID, date string, onSnapshot func(Snapshot), onError func(error)) (CancelFunc, error) {
	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create user dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	path := s.docPath(userID, date)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		deliver := func() {
			snap, err := s.Load(ctx, userID, date)
			if err != nil {
				onError(err)
				return
			}
			onSnapshot(snap)
		}

		// Initial delivery: at least once at subscription start.
		deliver()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					deliver()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onError(fmt.Errorf("watch %s: %w", dir, err))
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			watcher.Close()
			wg.Wait()
		})
	}
	return cancel, nil
}

// Close is a no-op for the file store; subscriptions hold the only resources.
func (s *FileStore) Close() error { return nil }
