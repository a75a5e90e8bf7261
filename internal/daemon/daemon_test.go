package daemon

import (
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakaya/planday/internal/catalog"
	"github.com/stakaya/planday/internal/config"
	"github.com/stakaya/planday/internal/uds"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func startDaemon(t *testing.T) *uds.Client {
	t.Helper()

	cfg := config.Default()
	// One tick interval far in the future keeps countdown values exact.
	cfg.Timer.TickIntervalMs = 3600000
	cfg.Notify.Enabled = false

	dir := t.TempDir()
	d, err := newDaemon(dir, cfg, io.Discard, nopCloser{})
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run() }()
	t.Cleanup(func() {
		d.Shutdown()
		select {
		case <-runErr:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	client := uds.NewClient(filepath.Join(dir, uds.DefaultSocketName))
	require.Eventually(t, func() bool {
		resp, err := client.SendCommand("ping", nil)
		return err == nil && resp.Success
	}, 5*time.Second, 20*time.Millisecond, "daemon never became ready")

	// Wait for the seeded plan to load before tests dispatch intents.
	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		return ok && status.Loaded
	}, 5*time.Second, 20*time.Millisecond, "plan never loaded")

	return client
}

func fetchStatus(t *testing.T, client *uds.Client) StatusPayload {
	t.Helper()
	payload, ok := tryStatus(client)
	require.True(t, ok, "status command failed")
	return payload
}

// tryStatus never fails the test; safe inside Eventually conditions.
func tryStatus(client *uds.Client) (StatusPayload, bool) {
	resp, err := client.SendCommand("status", nil)
	if err != nil || !resp.Success {
		return StatusPayload{}, false
	}
	var payload StatusPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return StatusPayload{}, false
	}
	return payload, true
}

func TestDaemon_SeedsDefaultPlan(t *testing.T) {
	client := startDaemon(t)

	status := fetchStatus(t, client)
	assert.Len(t, status.Plan.Tasks, len(catalog.DefaultTasks()))
	assert.Equal(t, 0, status.Completion)
	assert.False(t, status.Plan.WorkoutMode)
}

func TestDaemon_ToggleUpdatesCompletion(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("task_toggle", map[string]string{"task_id": catalog.IDDeepWork})
	require.NoError(t, err)
	require.True(t, resp.Success)

	// The toggle's write-through is the last committed change, so the plan
	// converges on it regardless of redelivery interleaving.
	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		if !ok {
			return false
		}
		i := status.Plan.FindTask(catalog.IDDeepWork)
		return i >= 0 && status.Plan.Tasks[i].Completed && status.Completion == 20
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDaemon_ToggleUnknownTaskIsNoop(t *testing.T) {
	client := startDaemon(t)
	before := fetchStatus(t, client)

	resp, err := client.SendCommand("task_toggle", map[string]string{"task_id": "task_ghost"})
	require.NoError(t, err)
	require.True(t, resp.Success, "unknown target is a no-op, not an error")

	after := fetchStatus(t, client)
	assert.Equal(t, before.Plan, after.Plan)
}

func TestDaemon_AddTask(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("task_add", nil)
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		return ok && len(status.Plan.Tasks) == len(catalog.DefaultTasks())+1
	}, 5*time.Second, 20*time.Millisecond)

	status := fetchStatus(t, client)
	added := status.Plan.Tasks[len(status.Plan.Tasks)-1]
	assert.Equal(t, "New Goal", added.Title)
	assert.Equal(t, "12:00", added.Time)
}

func TestDaemon_EditTimeResorts(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("task_edit", map[string]string{
		"task_id": catalog.IDEveningReview, "field": "time", "value": "05:00",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		return ok && len(status.Plan.Tasks) > 0 && status.Plan.Tasks[0].ID == catalog.IDEveningReview
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDaemon_InvalidEditRejected(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("task_edit", map[string]string{
		"task_id": catalog.IDDeepWork, "field": "time", "value": "29:99",
	})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeValidation, resp.Error.Code)
}

func TestDaemon_EnergyValidation(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("energy_set", map[string]string{"level": "high"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		return ok && status.Plan.EnergyLevel == "high"
	}, 5*time.Second, 20*time.Millisecond)

	resp, err = client.SendCommand("energy_set", map[string]string{"level": "turbo"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, uds.ErrCodeValidation, resp.Error.Code)
}

func TestDaemon_WorkoutModeSwap(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("workout_set", map[string]bool{"enabled": true})
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.Eventually(t, func() bool {
		status, ok := tryStatus(client)
		return ok && status.Plan.WorkoutMode &&
			status.Plan.FindTask(catalog.IDStrengthTraining) >= 0 &&
			status.Plan.FindTask(catalog.IDEveningRun) >= 0 &&
			status.Plan.FindTask(catalog.IDMorningStretch) < 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDaemon_TimerLifecycle(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("timer_start", map[string]string{"task_id": catalog.IDDeepWork})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var status StatusPayload
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Timer.Running)
	assert.Equal(t, catalog.IDDeepWork, status.Timer.ActiveTaskID)
	assert.Equal(t, 90*60, status.Timer.SecondsRemaining)
	assert.Equal(t, "90:00", status.Remaining)

	resp, err = client.SendCommand("timer_stop", nil)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.False(t, status.Timer.Running)
}

func TestDaemon_TimerStartUnknownTaskIsNoop(t *testing.T) {
	client := startDaemon(t)

	resp, err := client.SendCommand("timer_start", map[string]string{"task_id": "task_ghost"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var status StatusPayload
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.False(t, status.Timer.Running)
}

func TestDaemon_SecondInstanceRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Enabled = false
	dir := t.TempDir()

	d1, err := newDaemon(dir, cfg, io.Discard, nopCloser{})
	require.NoError(t, err)
	runErr := make(chan error, 1)
	go func() { runErr <- d1.Run() }()
	defer func() {
		d1.Shutdown()
		<-runErr
	}()

	client := uds.NewClient(filepath.Join(dir, uds.DefaultSocketName))
	require.Eventually(t, func() bool {
		resp, err := client.SendCommand("ping", nil)
		return err == nil && resp.Success
	}, 5*time.Second, 20*time.Millisecond)

	d2, err := newDaemon(dir, cfg, io.Discard, nopCloser{})
	require.NoError(t, err)
	assert.Error(t, d2.Run(), "second daemon on the same directory must fail the lock")
}
