// Package plan implements the day-plan state engine: pure mutation operations
// over DayPlan snapshots and the Session that owns the authoritative plan.
package plan

import (
	"errors"
	"math"
	"sort"

	"github.com/stakaya/planday/internal/catalog"
	"github.com/stakaya/planday/internal/model"
)

// Editable task fields.
const (
	FieldTitle = "title"
	FieldTime  = "time"
)

var (
	ErrInvalidField = errors.New("plan: field is not editable")
	ErrInvalidTime  = errors.New("plan: time must be a 24-hour HH:MM string")
)

// Defaults for a freshly added task.
const (
	newTaskTime     = "12:00"
	newTaskTitle    = "New Goal"
	newTaskDuration = 30
)

// Every operation below takes a DayPlan snapshot and returns a new one; the
// input is never mutated. Operations referencing an absent task id are
// silent no-ops.

// ToggleTask flips Completed on the matching task.
func ToggleTask(p model.DayPlan, taskID string) model.DayPlan {
	i := p.FindTask(taskID)
	if i < 0 {
		return p
	}
	out := p.Clone()
	out.Tasks[i].Completed = !out.Tasks[i].Completed
	return out
}

// DeleteTask removes the matching task, preserving the order of the rest.
func DeleteTask(p model.DayPlan, taskID string) model.DayPlan {
	i := p.FindTask(taskID)
	if i < 0 {
		return p
	}
	out := p.Clone()
	out.Tasks = append(out.Tasks[:i], out.Tasks[i+1:]...)
	return out
}

// AddTask appends a new task with default fields and a fresh id unique within
// the plan.
func AddTask(p model.DayPlan) model.DayPlan {
	taken := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		taken[t.ID] = true
	}
	duration := newTaskDuration
	out := p.Clone()
	out.Tasks = append(out.Tasks, model.Task{
		ID:          model.GenerateTaskID(taken),
		Time:        newTaskTime,
		Title:       newTaskTitle,
		Completed:   false,
		Type:        model.TaskTypeWork,
		DurationMin: &duration,
	})
	return out
}

// EditTaskField updates the title or time of one task. A time edit
// re-establishes ascending time order over the whole list.
func EditTaskField(p model.DayPlan, taskID, field, value string) (model.DayPlan, error) {
	switch field {
	case FieldTitle, FieldTime:
	default:
		return p, ErrInvalidField
	}
	if field == FieldTime && !model.ValidTime(value) {
		return p, ErrInvalidTime
	}

	i := p.FindTask(taskID)
	if i < 0 {
		return p, nil
	}

	out := p.Clone()
	switch field {
	case FieldTitle:
		out.Tasks[i].Title = value
	case FieldTime:
		out.Tasks[i].Time = value
		sortTasksByTime(out.Tasks)
	}
	return out, nil
}

// SetEnergyLevel replaces the plan's energy level. Tasks are untouched.
func SetEnergyLevel(p model.DayPlan, level model.EnergyLevel) model.DayPlan {
	out := p.Clone()
	out.EnergyLevel = level
	return out
}

// SetWorkoutMode strips every catalog activity task, appends the intense set
// when enabled (light otherwise), and re-sorts by time. User-authored tasks
// are never stripped, health-typed or not. Removing before re-adding makes
// repeated application of the same mode idempotent.
func SetWorkoutMode(p model.DayPlan, enabled bool) model.DayPlan {
	activity := catalog.ActivityTaskIDs()

	out := p.Clone()
	kept := out.Tasks[:0]
	for _, t := range out.Tasks {
		if !activity[t.ID] {
			kept = append(kept, t)
		}
	}
	out.Tasks = kept

	if enabled {
		out.Tasks = append(out.Tasks, catalog.IntenseTasks()...)
	} else {
		out.Tasks = append(out.Tasks, catalog.LightTasks()...)
	}
	sortTasksByTime(out.Tasks)
	out.WorkoutMode = enabled
	return out
}

// CompletionPercentage returns round(100 × completed / total), 0 for an empty
// list.
func CompletionPercentage(p model.DayPlan) int {
	if len(p.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range p.Tasks {
		if t.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(p.Tasks))))
}

// sortTasksByTime orders tasks ascending by their HH:MM value. The sort is
// stable: ties keep their prior relative order.
func sortTasksByTime(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Time < tasks[j].Time
	})
}
