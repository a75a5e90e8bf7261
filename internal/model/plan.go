// Package model defines the data structures for planday's day plans, tasks, and timer state.
package model

import (
	"fmt"
	"regexp"
	"time"
)

const (
	SchemaVersion = 1

	FileTypeDayPlan = "day_plan"

	// DateLayout is the calendar-date key format for a DayPlan document.
	DateLayout = "2006-01-02"
)

type TaskType string

const (
	TaskTypeWork    TaskType = "work"
	TaskTypeHealth  TaskType = "health"
	TaskTypeBreak   TaskType = "break"
	TaskTypeRoutine TaskType = "routine"
)

var validTaskTypes = map[TaskType]bool{
	TaskTypeWork:    true,
	TaskTypeHealth:  true,
	TaskTypeBreak:   true,
	TaskTypeRoutine: true,
}

func ValidTaskType(t TaskType) bool {
	return validTaskTypes[t]
}

type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

var validEnergyLevels = map[EnergyLevel]bool{
	EnergyLow:    true,
	EnergyMedium: true,
	EnergyHigh:   true,
}

func ValidEnergyLevel(l EnergyLevel) bool {
	return validEnergyLevels[l]
}

// Default durations applied when a task carries no explicit duration.
const (
	DefaultTimerMinutes   = 25
	DefaultDisplayMinutes = 30
)

// ParseDate validates a "YYYY-MM-DD" date key.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", s, err)
	}
	return t, nil
}

// DateKey formats t as a "YYYY-MM-DD" date key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether s is a 24-hour "HH:MM" string.
func ValidTime(s string) bool {
	return timeRegex.MatchString(s)
}

type Task struct {
	ID          string   `yaml:"id" json:"id"`
	Time        string   `yaml:"time" json:"time"`
	Title       string   `yaml:"title" json:"title"`
	Completed   bool     `yaml:"completed" json:"completed"`
	Type        TaskType `yaml:"type" json:"type"`
	DurationMin *int     `yaml:"duration_min,omitempty" json:"duration_min,omitempty"`
}

// TimerMinutes returns the task duration for countdown purposes.
func (t Task) TimerMinutes() int {
	if t.DurationMin != nil && *t.DurationMin > 0 {
		return *t.DurationMin
	}
	return DefaultTimerMinutes
}

// DisplayMinutes returns the task duration for presentation purposes.
func (t Task) DisplayMinutes() int {
	if t.DurationMin != nil && *t.DurationMin > 0 {
		return *t.DurationMin
	}
	return DefaultDisplayMinutes
}

func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has empty id")
	}
	if !ValidTime(t.Time) {
		return fmt.Errorf("task %s: invalid time %q", t.ID, t.Time)
	}
	if !ValidTaskType(t.Type) {
		return fmt.Errorf("task %s: invalid type %q", t.ID, t.Type)
	}
	if t.DurationMin != nil && *t.DurationMin <= 0 {
		return fmt.Errorf("task %s: duration must be positive, got %d", t.ID, *t.DurationMin)
	}
	return nil
}

// DayPlan is the single per-user, per-date aggregate of tasks and settings.
// Task order is display order; time edits re-establish ascending time order.
type DayPlan struct {
	SchemaVersion int         `yaml:"schema_version" json:"schema_version"`
	FileType      string      `yaml:"file_type" json:"file_type"`
	Date          string      `yaml:"date" json:"date"`
	Tasks         []Task      `yaml:"tasks" json:"tasks"`
	EnergyLevel   EnergyLevel `yaml:"energy_level" json:"energy_level"`
	WorkoutMode   bool        `yaml:"workout_mode" json:"workout_mode"`
}

// Clone returns a deep copy. Plan values are replaced wholesale on every
// transition, never mutated in place.
func (p DayPlan) Clone() DayPlan {
	out := p
	out.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		out.Tasks[i] = t
		if t.DurationMin != nil {
			d := *t.DurationMin
			out.Tasks[i].DurationMin = &d
		}
	}
	return out
}

// FindTask returns the index of the task with the given id, or -1.
func (p DayPlan) FindTask(id string) int {
	for i, t := range p.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (p DayPlan) Validate() error {
	if p.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", p.SchemaVersion)
	}
	if p.FileType != FileTypeDayPlan {
		return fmt.Errorf("unexpected file_type %q", p.FileType)
	}
	if _, err := ParseDate(p.Date); err != nil {
		return err
	}
	if !ValidEnergyLevel(p.EnergyLevel) {
		return fmt.Errorf("invalid energy_level %q", p.EnergyLevel)
	}
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// TimerState is the process-local countdown snapshot. It is never persisted.
type TimerState struct {
	ActiveTaskID     string `json:"active_task_id,omitempty"`
	SecondsRemaining int    `json:"seconds_remaining"`
	Running          bool   `json:"running"`
}
