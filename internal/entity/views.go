package entity

import "github.com/roach88/sprintledger/internal/record"

// WorkItem is the read view of a Task or Bug the engines care about.
type WorkItem struct {
	Kind        Kind
	ID          string
	SprintID    string
	Status      string
	ActualHours float64
	AssigneeID  string
}

// WorkItemOf reads a work-item view from a stored record.
func WorkItemOf(kind Kind, rec record.Record) WorkItem {
	w := WorkItem{Kind: kind, ID: rec.ID(), ActualHours: rec.Number(FieldActualHours)}
	w.SprintID, _ = rec.String(FieldSprintID)
	w.Status, _ = rec.String(FieldStatus)
	w.AssigneeID, _ = rec.String(FieldAssigneeID)
	return w
}

// Done reports whether the item is in the terminal status.
func (w WorkItem) Done() bool {
	return w.Status == StatusDone
}

// TimeEntry is the read view of a stored time entry.
type TimeEntry struct {
	ID         string
	WorkItemID string
	IsBugEntry bool
	Hours      float64
	ProjectID  string
	SprintID   string
}

// TimeEntryOf reads a time-entry view from a stored record.
//
// isTaskEntry wins when present; entries written without it are task
// entries unless isBugEntry says otherwise.
func TimeEntryOf(rec record.Record) TimeEntry {
	e := TimeEntry{ID: rec.ID(), Hours: rec.Number(FieldHours)}
	e.WorkItemID, _ = rec.String(FieldTaskID)
	e.ProjectID, _ = rec.String(FieldProjectID)
	e.SprintID, _ = rec.String(FieldSprintID)
	if isTask, ok := rec.Bool(FieldIsTaskEntry); ok {
		e.IsBugEntry = !isTask
	} else if isBug, ok := rec.Bool(FieldIsBugEntry); ok {
		e.IsBugEntry = isBug
	}
	return e
}

// WorkItemKind returns the collection kind the entry's work item lives in.
func (e TimeEntry) WorkItemKind() Kind {
	if e.IsBugEntry {
		return KindBug
	}
	return KindTask
}
