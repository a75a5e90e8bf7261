package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// TaskIDPrefix marks user-generated task ids.
	TaskIDPrefix = "task_"
	// CatalogIDPrefix marks reserved catalog task ids. The generator never
	// produces ids with this prefix, so catalog entries cannot collide with
	// user-authored tasks.
	CatalogIDPrefix = "cat_"
)

var taskIDRegex = regexp.MustCompile(`^task_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// GenerateTaskID returns a fresh task id guaranteed not to collide with any
// id in taken. UUIDv4 collisions are astronomically unlikely; the retry loop
// exists so the guarantee holds regardless.
func GenerateTaskID(taken map[string]bool) string {
	for {
		id := TaskIDPrefix + uuid.NewString()
		if !taken[id] {
			return id
		}
	}
}

// ValidTaskID reports whether id is a generator-produced task id.
func ValidTaskID(id string) bool {
	return taskIDRegex.MatchString(id)
}

// IsCatalogID reports whether id belongs to the reserved catalog range.
func IsCatalogID(id string) bool {
	return strings.HasPrefix(id, CatalogIDPrefix)
}
