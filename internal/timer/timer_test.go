package timer

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakaya/planday/internal/events"
	"github.com/stakaya/planday/internal/model"
)

func intPtr(n int) *int { return &n }

func newTestTimer(interval time.Duration, bus *events.Bus) *Timer {
	return New(interval, bus, log.New(io.Discard, "", 0))
}

func task(id string, durationMin *int) model.Task {
	return model.Task{ID: id, Time: "09:00", Title: "Task " + id, Type: model.TaskTypeWork, DurationMin: durationMin}
}

func TestStart_SetsCountdownFromDuration(t *testing.T) {
	tm := newTestTimer(time.Hour, nil) // interval far away; no tick during test
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))

	state := tm.State()
	assert.Equal(t, "a", state.ActiveTaskID)
	assert.Equal(t, 1800, state.SecondsRemaining)
	assert.True(t, state.Running)
	assert.Equal(t, PhaseRunning, tm.CurrentPhase())
}

func TestStart_DefaultDuration(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", nil))
	assert.Equal(t, model.DefaultTimerMinutes*60, tm.State().SecondsRemaining)
}

func TestStart_SameTaskTogglesToIdle(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	tm.Start(task("a", intPtr(30)))

	state := tm.State()
	assert.False(t, state.Running)
	assert.Empty(t, state.ActiveTaskID)
	assert.Zero(t, state.SecondsRemaining)
	assert.Equal(t, PhaseIdle, tm.CurrentPhase())
}

func TestStart_DifferentTaskReplacesCountdown(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	tm.Start(task("b", intPtr(10)))

	state := tm.State()
	assert.Equal(t, "b", state.ActiveTaskID)
	assert.Equal(t, 600, state.SecondsRemaining, "replacement starts fresh at b's duration")
	assert.True(t, state.Running)
}

func TestTick_DecrementsOncePerInterval(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	gen := func() int { tm.mu.Lock(); defer tm.mu.Unlock(); return tm.gen }()

	tm.tick(gen)
	assert.Equal(t, 1799, tm.State().SecondsRemaining)
	tm.tick(gen)
	assert.Equal(t, 1798, tm.State().SecondsRemaining)
}

func TestTick_StaleGenerationIgnored(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	tm.Start(task("b", intPtr(10)))
	gen := func() int { tm.mu.Lock(); defer tm.mu.Unlock(); return tm.gen }()

	tm.tick(gen - 1)
	assert.Equal(t, 600, tm.State().SecondsRemaining, "stale tick must not decrement")
}

func TestCountdown_RunsToExpiry(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()
	expired := make(chan events.Event, 1)
	unsub := bus.Subscribe(events.EventTimerExpired, func(ev events.Event) {
		expired <- ev
	})
	defer unsub()

	tm := newTestTimer(time.Millisecond, bus)
	defer tm.Close()

	tm.Start(task("a", intPtr(1))) // 60 ticks

	select {
	case ev := <-expired:
		assert.Equal(t, "a", ev.Data["task_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("countdown never expired")
	}

	state := tm.State()
	assert.False(t, state.Running)
	assert.Zero(t, state.SecondsRemaining)
	assert.Equal(t, "a", state.ActiveTaskID, "expired timer keeps its task until a fresh start")
	assert.Equal(t, PhaseExpired, tm.CurrentPhase())
}

func TestExpiry_FiresNotification(t *testing.T) {
	tm := newTestTimer(time.Millisecond, nil)
	defer tm.Close()

	var mu sync.Mutex
	var gotTitle, gotMessage string
	notified := make(chan struct{})
	tm.SetNotifier(func(title, message string) error {
		mu.Lock()
		gotTitle, gotMessage = title, message
		mu.Unlock()
		close(notified)
		return nil
	})

	tm.Start(task("a", intPtr(1)))

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification on expiry")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Time's up", gotTitle)
	assert.Equal(t, "Task a", gotMessage)
}

func TestExpired_RequiresFreshStart(t *testing.T) {
	tm := newTestTimer(time.Hour, nil)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	gen := func() int { tm.mu.Lock(); defer tm.mu.Unlock(); return tm.gen }()
	tm.mu.Lock()
	tm.secondsLeft = 1
	tm.mu.Unlock()
	tm.tick(gen)
	require.Equal(t, PhaseExpired, tm.CurrentPhase())

	// Stop is a no-op on an expired timer.
	tm.Stop()
	assert.Equal(t, PhaseExpired, tm.CurrentPhase())

	// A fresh start reuses the slot for any task.
	tm.Start(task("b", intPtr(10)))
	state := tm.State()
	assert.True(t, state.Running)
	assert.Equal(t, "b", state.ActiveTaskID)
}

func TestClose_StopsPendingTicks(t *testing.T) {
	tm := newTestTimer(time.Millisecond, nil)
	tm.Start(task("a", intPtr(30)))

	tm.Close()
	after := tm.State().SecondsRemaining
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, tm.State().SecondsRemaining, "no decrement after Close")
}

func TestStop_PublishesEvent(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()
	stopped := make(chan events.Event, 1)
	unsub := bus.Subscribe(events.EventTimerStopped, func(ev events.Event) {
		stopped <- ev
	})
	defer unsub()

	tm := newTestTimer(time.Hour, bus)
	defer tm.Close()

	tm.Start(task("a", intPtr(30)))
	tm.Stop()

	select {
	case ev := <-stopped:
		assert.Equal(t, "a", ev.Data["task_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no timer_stopped event")
	}
	assert.Equal(t, PhaseIdle, tm.CurrentPhase())
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{65, "1:05"},
		{600, "10:00"},
		{1800, "30:00"},
		{1799, "29:59"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.seconds), "seconds=%d", tt.seconds)
	}
}
