// Package entity defines the six tracked entity kinds, their reference
// fields, and the typed inputs accepted at the boundary.
//
// The Registry is the single source of truth for which fields point at which
// parent and what happens to a dependent when its parent is deleted. The
// cascade engine derives every step from it.
package entity

import "fmt"

// Kind names an entity kind.
type Kind string

const (
	KindProject    Kind = "project"
	KindSprint     Kind = "sprint"
	KindTask       Kind = "task"
	KindBug        Kind = "bug"
	KindTeamMember Kind = "team_member"
	KindTimeEntry  Kind = "time_entry"
)

var collections = map[Kind]string{
	KindProject:    "projects",
	KindSprint:     "sprints",
	KindTask:       "tasks",
	KindBug:        "bugs",
	KindTeamMember: "team",
	KindTimeEntry:  "time_entries",
}

// Kinds returns every kind in dependency order (parents first).
func Kinds() []Kind {
	return []Kind{KindProject, KindSprint, KindTask, KindBug, KindTeamMember, KindTimeEntry}
}

// Collection returns the store collection for k.
func (k Kind) Collection() string {
	return collections[k]
}

// Valid reports whether k is one of the six kinds.
func (k Kind) Valid() bool {
	_, ok := collections[k]
	return ok
}

// IsWorkItem reports whether k is a Task or Bug.
func (k Kind) IsWorkItem() bool {
	return k == KindTask || k == KindBug
}

// ParseKind accepts a kind name ("team_member") or its collection ("team").
func ParseKind(s string) (Kind, error) {
	if k := Kind(s); k.Valid() {
		return k, nil
	}
	for k, c := range collections {
		if c == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Field names shared across kinds.
const (
	FieldID             = "id"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldName           = "name"
	FieldStatus         = "status"
	FieldProjectID      = "projectId"
	FieldSprintID       = "sprintId"
	FieldTaskID         = "taskId"
	FieldAssigneeID     = "assigneeId"
	FieldAssignee       = "assignee"
	FieldActualHours    = "actualHours"
	FieldAcceptedPoints = "acceptedPoints"
	FieldIsTaskEntry    = "isTaskEntry"
	FieldIsBugEntry     = "isBugEntry"
	FieldHours          = "hours"
	FieldDate           = "date"
)

// StatusDone is the terminal work-item status that gates hour accumulation.
const StatusDone = "Done"

// Work item statuses used by the bundled fixtures.
const (
	StatusNew        = "New"
	StatusInProgress = "In Progress"
	StatusTesting    = "Testing"
)

// Sprint statuses.
const (
	SprintPlanning  = "Planning"
	SprintActive    = "Active"
	SprintCompleted = "Completed"
)
