// Package timer implements the countdown subsystem: one clock bound to at
// most one task at a time, fully decoupled from plan data. It only ever reads
// a task's duration.
package timer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stakaya/planday/internal/events"
	"github.com/stakaya/planday/internal/model"
)

// Phase is the timer state machine position.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseExpired Phase = "expired"
)

// Timer is the process-local countdown clock. Each countdown owns a ticker
// goroutine; replacing or stopping a countdown cancels that goroutine before
// another can decrement.
type Timer struct {
	interval time.Duration
	bus      *events.Bus
	logger   *log.Logger
	notifyFn func(title, message string) error

	mu          sync.Mutex
	phase       Phase
	taskID      string
	taskTitle   string
	secondsLeft int
	gen         int
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates an idle timer ticking at interval (one second in production;
// tests inject a shorter one).
func New(interval time.Duration, bus *events.Bus, logger *log.Logger) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Timer{
		interval: interval,
		bus:      bus,
		logger:   logger,
		phase:    PhaseIdle,
	}
}

// SetNotifier wires the desktop notification hook fired on expiry.
// Must be called before Start.
func (t *Timer) SetNotifier(fn func(title, message string) error) {
	t.notifyFn = fn
}

// Start begins a countdown for task at its duration (default applies when the
// task has none). Starting the task that is already running stops the timer
// instead; starting a different task silently replaces the running countdown.
func (t *Timer) Start(task model.Task) {
	t.mu.Lock()
	if t.phase == PhaseRunning && t.taskID == task.ID {
		t.stopLocked()
		t.mu.Unlock()
		t.publish(events.EventTimerStopped, map[string]any{"task_id": task.ID})
		return
	}

	t.stopLocked()
	t.phase = PhaseRunning
	t.taskID = task.ID
	t.taskTitle = task.Title
	t.secondsLeft = task.TimerMinutes() * 60
	t.gen++
	gen := t.gen

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(ctx, gen)
	seconds := t.secondsLeft
	t.mu.Unlock()

	t.publish(events.EventTimerStarted, map[string]any{
		"task_id": task.ID,
		"seconds": seconds,
	})
}

// Stop cancels a running countdown and returns the timer to idle.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.phase != PhaseRunning {
		t.mu.Unlock()
		return
	}
	taskID := t.taskID
	t.stopLocked()
	t.mu.Unlock()

	t.publish(events.EventTimerStopped, map[string]any{"task_id": taskID})
}

// stopLocked cancels any active countdown and resets to idle. Caller holds mu.
func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.phase = PhaseIdle
	t.taskID = ""
	t.taskTitle = ""
	t.secondsLeft = 0
}

func (t *Timer) run(ctx context.Context, gen int) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := t.tick(gen); expired {
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// tick applies one decrement. The generation guard keeps a goroutine whose
// countdown was replaced from touching the successor's state.
func (t *Timer) tick(gen int) bool {
	t.mu.Lock()
	if t.gen != gen || t.phase != PhaseRunning {
		t.mu.Unlock()
		return true
	}
	t.secondsLeft--
	if t.secondsLeft > 0 {
		t.mu.Unlock()
		return false
	}
	// Zero with running set is transient; resolve to expired immediately.
	t.secondsLeft = 0
	t.phase = PhaseExpired
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	taskID := t.taskID
	title := t.taskTitle
	t.mu.Unlock()

	t.publish(events.EventTimerExpired, map[string]any{"task_id": taskID})
	if t.notifyFn != nil {
		if err := t.notifyFn("Time's up", title); err != nil {
			t.logger.Printf("timer notification failed: %v", err)
		}
	}
	return true
}

// State returns a snapshot of the countdown.
func (t *Timer) State() model.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.TimerState{
		ActiveTaskID:     t.taskID,
		SecondsRemaining: t.secondsLeft,
		Running:          t.phase == PhaseRunning,
	}
}

// CurrentPhase returns the state machine position.
func (t *Timer) CurrentPhase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Close cancels any pending tick and waits for the countdown goroutine to
// exit; no decrement fires after Close returns.
func (t *Timer) Close() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++ // invalidate any goroutine mid-tick
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Timer) publish(eventType events.EventType, data map[string]any) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(eventType, data)
}

// FormatRemaining renders seconds as M:SS, minutes unpadded.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
