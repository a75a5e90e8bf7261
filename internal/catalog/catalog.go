// Package catalog holds the fixed seed task sets: the default day plan and the
// two activity sets swapped by workout mode. Catalog ids are reserved; the task
// id generator never produces them.
package catalog

import (
	"sort"

	"github.com/stakaya/planday/internal/model"
)

// Reserved catalog task ids.
const (
	IDMorningRoutine = "cat_morning_routine"
	IDDeepWork       = "cat_deep_work"
	IDLunchBreak     = "cat_lunch_break"
	IDAfternoonFocus = "cat_afternoon_focus"
	IDEveningReview  = "cat_evening_review"

	IDStrengthTraining = "cat_strength_training"
	IDEveningRun       = "cat_evening_run"

	IDMorningStretch = "cat_morning_stretch"
	IDEveningWalk    = "cat_evening_walk"
)

func minutes(n int) *int { return &n }

// DefaultTasks returns the seed task list for a freshly materialized day.
func DefaultTasks() []model.Task {
	return []model.Task{
		{ID: IDMorningRoutine, Time: "07:00", Title: "Morning routine", Type: model.TaskTypeRoutine},
		{ID: IDDeepWork, Time: "09:00", Title: "Deep work block", Type: model.TaskTypeWork, DurationMin: minutes(90)},
		{ID: IDLunchBreak, Time: "12:30", Title: "Lunch break", Type: model.TaskTypeBreak, DurationMin: minutes(45)},
		{ID: IDAfternoonFocus, Time: "14:00", Title: "Afternoon focus", Type: model.TaskTypeWork, DurationMin: minutes(60)},
		{ID: IDEveningReview, Time: "18:00", Title: "Evening review", Type: model.TaskTypeRoutine, DurationMin: minutes(15)},
	}
}

// IntenseTasks returns the intense activity set appended when workout mode is on.
func IntenseTasks() []model.Task {
	return []model.Task{
		{ID: IDStrengthTraining, Time: "06:30", Title: "Strength training", Type: model.TaskTypeHealth, DurationMin: minutes(45)},
		{ID: IDEveningRun, Time: "17:30", Title: "Evening run", Type: model.TaskTypeHealth, DurationMin: minutes(40)},
	}
}

// LightTasks returns the light activity set appended when workout mode is off.
func LightTasks() []model.Task {
	return []model.Task{
		{ID: IDMorningStretch, Time: "06:30", Title: "Morning stretch", Type: model.TaskTypeHealth, DurationMin: minutes(15)},
		{ID: IDEveningWalk, Time: "17:30", Title: "Evening walk", Type: model.TaskTypeHealth, DurationMin: minutes(20)},
	}
}

// ActivityTaskIDs returns the union of intense and light set ids. Only these
// are stripped by a workout-mode switch; user-authored tasks survive even when
// they share the health type.
func ActivityTaskIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, t := range IntenseTasks() {
		ids[t.ID] = true
	}
	for _, t := range LightTasks() {
		ids[t.ID] = true
	}
	return ids
}

// NewDefaultPlan builds the seeded plan for a date: default tasks, medium
// energy, workout mode off, tasks in ascending time order.
func NewDefaultPlan(date string) model.DayPlan {
	tasks := DefaultTasks()
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Time < tasks[j].Time
	})
	return model.DayPlan{
		SchemaVersion: model.SchemaVersion,
		FileType:      model.FileTypeDayPlan,
		Date:          date,
		Tasks:         tasks,
		EnergyLevel:   model.EnergyMedium,
		WorkoutMode:   false,
	}
}
