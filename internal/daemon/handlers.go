package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stakaya/planday/internal/model"
	"github.com/stakaya/planday/internal/plan"
	"github.com/stakaya/planday/internal/timer"
	"github.com/stakaya/planday/internal/uds"
)

// StatusPayload is the full render state for the presentation surface.
type StatusPayload struct {
	Loaded     bool             `json:"loaded"`
	Plan       model.DayPlan    `json:"plan"`
	Completion int              `json:"completion"`
	Timer      model.TimerState `json:"timer"`
	TimerPhase string           `json:"timer_phase"`
	Remaining  string           `json:"remaining"`
}

type taskIDParams struct {
	TaskID string `json:"task_id"`
}

type editParams struct {
	TaskID string `json:"task_id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
}

type energyParams struct {
	Level string `json:"level"`
}

type workoutParams struct {
	Enabled bool `json:"enabled"`
}

func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("status", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(d.statusPayload())
	})

	d.server.Handle("task_toggle", func(req *uds.Request) *uds.Response {
		var p taskIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		return d.mutate(func() error { return d.session.Toggle(p.TaskID) })
	})

	d.server.Handle("task_add", func(req *uds.Request) *uds.Response {
		return d.mutate(func() error { return d.session.Add() })
	})

	d.server.Handle("task_delete", func(req *uds.Request) *uds.Response {
		var p taskIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		return d.mutate(func() error { return d.session.Delete(p.TaskID) })
	})

	d.server.Handle("task_edit", func(req *uds.Request) *uds.Response {
		var p editParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		return d.mutate(func() error { return d.session.EditField(p.TaskID, p.Field, p.Value) })
	})

	d.server.Handle("energy_set", func(req *uds.Request) *uds.Response {
		var p energyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		level := model.EnergyLevel(p.Level)
		if !model.ValidEnergyLevel(level) {
			return uds.ErrorResponse(uds.ErrCodeValidation,
				fmt.Sprintf("invalid energy level %q (low|medium|high)", p.Level))
		}
		return d.mutate(func() error { return d.session.SetEnergy(level) })
	})

	d.server.Handle("workout_set", func(req *uds.Request) *uds.Response {
		var p workoutParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		return d.mutate(func() error { return d.session.SetWorkout(p.Enabled) })
	})

	d.server.Handle("timer_start", func(req *uds.Request) *uds.Response {
		var p taskIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		}
		current, loaded := d.session.Plan()
		if !loaded {
			return uds.ErrorResponse(uds.ErrCodeNotLoaded, "day plan not loaded yet")
		}
		// An unknown task id is a silent no-op, like any invalid mutation target.
		if i := current.FindTask(p.TaskID); i >= 0 {
			d.timer.Start(current.Tasks[i])
		}
		return uds.SuccessResponse(d.statusPayload())
	})

	d.server.Handle("timer_stop", func(req *uds.Request) *uds.Response {
		d.timer.Stop()
		return uds.SuccessResponse(d.statusPayload())
	})

	d.server.Handle("shutdown", func(req *uds.Request) *uds.Response {
		d.log(LogLevelInfo, "shutdown requested via socket")
		go d.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

// mutate runs one session mutation and answers with the resulting status.
func (d *Daemon) mutate(fn func() error) *uds.Response {
	if err := fn(); err != nil {
		switch {
		case errors.Is(err, plan.ErrNotLoaded):
			return uds.ErrorResponse(uds.ErrCodeNotLoaded, err.Error())
		case errors.Is(err, plan.ErrInvalidField), errors.Is(err, plan.ErrInvalidTime):
			return uds.ErrorResponse(uds.ErrCodeValidation, err.Error())
		default:
			return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
		}
	}
	return uds.SuccessResponse(d.statusPayload())
}

func (d *Daemon) statusPayload() StatusPayload {
	current, loaded := d.session.Plan()
	state := d.timer.State()
	return StatusPayload{
		Loaded:     loaded,
		Plan:       current,
		Completion: plan.CompletionPercentage(current),
		Timer:      state,
		TimerPhase: string(d.timer.CurrentPhase()),
		Remaining:  timer.FormatRemaining(state.SecondsRemaining),
	}
}
