package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/record"
)

// Patch is a tagged set of optional fields for one kind. The same type is
// used for creation (absent fields take defaults) and partial update
// (absent fields are untouched).
type Patch interface {
	Kind() Kind
	Fields() record.Fields
	// Missing lists fields required on create that are absent or null.
	Missing() []string
}

// ProjectPatch carries Project fields.
type ProjectPatch struct {
	Name      Optional[string]   `json:"name,omitzero"`
	Status    Optional[string]   `json:"status,omitzero"`
	Priority  Optional[string]   `json:"priority,omitzero"`
	StartDate Optional[DateTime] `json:"startDate,omitzero"`
	EndDate   Optional[DateTime] `json:"endDate,omitzero"`
}

func (ProjectPatch) Kind() Kind { return KindProject }

func (p ProjectPatch) Fields() record.Fields {
	s := newFieldSetter()
	setString(s, FieldName, p.Name)
	setString(s, FieldStatus, p.Status)
	setString(s, "priority", p.Priority)
	setDateTime(s, "startDate", p.StartDate)
	setDateTime(s, "endDate", p.EndDate)
	return s.fields
}

func (p ProjectPatch) Missing() []string {
	return missing(
		req(FieldName, p.Name.Present()),
		req(FieldStatus, p.Status.Present()),
		req("priority", p.Priority.Present()),
		req("startDate", p.StartDate.Present()),
		req("endDate", p.EndDate.Present()),
	)
}

// SprintPatch carries Sprint fields. acceptedPoints may be supplied but is
// always replaced by the value derived from the sprint's completed work.
type SprintPatch struct {
	ProjectID       Optional[string]   `json:"projectId,omitzero"`
	Name            Optional[string]   `json:"name,omitzero"`
	Status          Optional[string]   `json:"status,omitzero"`
	StartDate       Optional[DateTime] `json:"startDate,omitzero"`
	EndDate         Optional[DateTime] `json:"endDate,omitzero"`
	CommittedPoints Optional[Count]    `json:"committedPoints,omitzero"`
	AcceptedPoints  Optional[Count]    `json:"acceptedPoints,omitzero"`
	AddedPoints     Optional[Count]    `json:"addedPoints,omitzero"`
	DescopedPoints  Optional[Count]    `json:"descopedPoints,omitzero"`
}

func (SprintPatch) Kind() Kind { return KindSprint }

func (p SprintPatch) Fields() record.Fields {
	s := newFieldSetter()
	setString(s, FieldProjectID, p.ProjectID)
	setString(s, FieldName, p.Name)
	setString(s, FieldStatus, p.Status)
	setDateTime(s, "startDate", p.StartDate)
	setDateTime(s, "endDate", p.EndDate)
	setCount(s, "committedPoints", p.CommittedPoints)
	setCount(s, FieldAcceptedPoints, p.AcceptedPoints)
	setCount(s, "addedPoints", p.AddedPoints)
	setCount(s, "descopedPoints", p.DescopedPoints)
	return s.fields
}

func (p SprintPatch) Missing() []string {
	return missing(
		req(FieldProjectID, p.ProjectID.Present()),
		req(FieldName, p.Name.Present()),
		req(FieldStatus, p.Status.Present()),
		req("startDate", p.StartDate.Present()),
		req("endDate", p.EndDate.Present()),
	)
}

// WorkItemPatch carries the fields Tasks and Bugs share.
type WorkItemPatch struct {
	ProjectID      Optional[string] `json:"projectId,omitzero"`
	SprintID       Optional[string] `json:"sprintId,omitzero"`
	Title          Optional[string] `json:"title,omitzero"`
	Description    Optional[string] `json:"description,omitzero"`
	Status         Optional[string] `json:"status,omitzero"`
	Priority       Optional[string] `json:"priority,omitzero"`
	AssigneeID     Optional[string] `json:"assigneeId,omitzero"`
	Assignee       Optional[string] `json:"assignee,omitzero"`
	EstimatedHours Optional[Number] `json:"estimatedHours,omitzero"`
	ActualHours    Optional[Number] `json:"actualHours,omitzero"`
}

func (p WorkItemPatch) fields(s *fieldSetter) {
	setString(s, FieldProjectID, p.ProjectID)
	setString(s, FieldSprintID, p.SprintID)
	setString(s, "title", p.Title)
	setString(s, "description", p.Description)
	setString(s, FieldStatus, p.Status)
	setString(s, "priority", p.Priority)
	setString(s, FieldAssigneeID, p.AssigneeID)
	setString(s, FieldAssignee, p.Assignee)
	setNumber(s, "estimatedHours", p.EstimatedHours)
	setNumber(s, FieldActualHours, p.ActualHours)
}

func (p WorkItemPatch) required() []string {
	return missing(
		req(FieldProjectID, p.ProjectID.Present()),
		req("title", p.Title.Present()),
		req(FieldStatus, p.Status.Present()),
		req("priority", p.Priority.Present()),
	)
}

// TaskPatch carries Task fields.
type TaskPatch struct {
	WorkItemPatch
}

func (TaskPatch) Kind() Kind { return KindTask }

func (p TaskPatch) Fields() record.Fields {
	s := newFieldSetter()
	p.fields(s)
	return s.fields
}

func (p TaskPatch) Missing() []string {
	return p.required()
}

// BugPatch carries Bug fields.
type BugPatch struct {
	WorkItemPatch
	TaskID   Optional[string] `json:"taskId,omitzero"`
	Severity Optional[string] `json:"severity,omitzero"`
}

func (BugPatch) Kind() Kind { return KindBug }

func (p BugPatch) Fields() record.Fields {
	s := newFieldSetter()
	p.fields(s)
	setString(s, FieldTaskID, p.TaskID)
	setString(s, "severity", p.Severity)
	return s.fields
}

func (p BugPatch) Missing() []string {
	return append(p.required(), missing(req("severity", p.Severity.Present()))...)
}

// TeamMemberPatch carries TeamMember fields.
type TeamMemberPatch struct {
	Name      Optional[string] `json:"name,omitzero"`
	Role      Optional[string] `json:"role,omitzero"`
	Capacity  Optional[Count]  `json:"capacity,omitzero"`
	Avatar    Optional[string] `json:"avatar,omitzero"`
	ProjectID Optional[string] `json:"projectId,omitzero"`
	SprintID  Optional[string] `json:"sprintId,omitzero"`
}

func (TeamMemberPatch) Kind() Kind { return KindTeamMember }

func (p TeamMemberPatch) Fields() record.Fields {
	s := newFieldSetter()
	setString(s, FieldName, p.Name)
	setString(s, "role", p.Role)
	setCount(s, "capacity", p.Capacity)
	setString(s, "avatar", p.Avatar)
	setString(s, FieldProjectID, p.ProjectID)
	setString(s, FieldSprintID, p.SprintID)
	return s.fields
}

func (p TeamMemberPatch) Missing() []string {
	return missing(
		req(FieldName, p.Name.Present()),
		req("role", p.Role.Present()),
		req("capacity", p.Capacity.Present()),
	)
}

// TimeEntryInput carries a new TimeEntry. Entries are immutable, so there
// is no update form.
//
// taskId holds the work-item id for both kinds; the isTaskEntry/isBugEntry
// pair says which collection it lives in.
type TimeEntryInput struct {
	TaskID      Optional[string] `json:"taskId,omitzero"`
	ProjectID   Optional[string] `json:"projectId,omitzero"`
	SprintID    Optional[string] `json:"sprintId,omitzero"`
	IsTaskEntry Optional[bool]   `json:"isTaskEntry,omitzero"`
	IsBugEntry  Optional[bool]   `json:"isBugEntry,omitzero"`
	Date        Optional[Day]    `json:"date,omitzero"`
	Hours       Optional[Number] `json:"hours,omitzero"`
	Description Optional[string] `json:"description,omitzero"`
}

func (TimeEntryInput) Kind() Kind { return KindTimeEntry }

// Discriminator resolves the isTaskEntry/isBugEntry pair. An entry that only
// says isBugEntry=true is a bug entry; with neither set it is a task entry.
func (in TimeEntryInput) Discriminator() (isTask, isBug bool, err error) {
	switch {
	case in.IsTaskEntry.Present() && in.IsBugEntry.Present():
		isTask, isBug = in.IsTaskEntry.Value, in.IsBugEntry.Value
	case in.IsBugEntry.Present():
		isBug = in.IsBugEntry.Value
		isTask = !isBug
	case in.IsTaskEntry.Present():
		isTask = in.IsTaskEntry.Value
		isBug = !isTask
	default:
		isTask = true
	}
	if isTask == isBug {
		return false, false, apperr.Validation("exactly one of isTaskEntry and isBugEntry must be true")
	}
	return isTask, isBug, nil
}

func (in TimeEntryInput) Fields() record.Fields {
	s := newFieldSetter()
	setString(s, FieldTaskID, in.TaskID)
	setString(s, FieldProjectID, in.ProjectID)
	setString(s, FieldSprintID, in.SprintID)
	if in.Date.Present() {
		s.fields[FieldDate] = record.String(in.Date.Value)
	}
	setNumber(s, FieldHours, in.Hours)
	setString(s, "description", in.Description)
	if isTask, isBug, err := in.Discriminator(); err == nil {
		s.fields[FieldIsTaskEntry] = record.Bool(isTask)
		s.fields[FieldIsBugEntry] = record.Bool(isBug)
	}
	return s.fields
}

func (in TimeEntryInput) Missing() []string {
	return missing(
		req(FieldTaskID, in.TaskID.Present()),
		req(FieldDate, in.Date.Present()),
		req(FieldHours, in.Hours.Present()),
	)
}

// Validate checks the entry-specific rules beyond required fields.
func (in TimeEntryInput) Validate() error {
	if h := float64(in.Hours.Value); in.Hours.Present() && (h <= 0 || math.IsInf(h, 0) || math.IsNaN(h)) {
		return apperr.Validation("hours must be a positive number, got %v", h)
	}
	_, _, err := in.Discriminator()
	return err
}

var defaults = map[Kind]record.Fields{
	KindProject: {},
	KindSprint: {
		"committedPoints":   record.Number(0),
		FieldAcceptedPoints: record.Number(0),
		"addedPoints":       record.Number(0),
		"descopedPoints":    record.Number(0),
	},
	KindTask: {
		FieldSprintID:    record.Null{},
		"description":    record.Null{},
		FieldAssigneeID:  record.Null{},
		FieldAssignee:    record.Null{},
		"estimatedHours": record.Number(0),
		FieldActualHours: record.Number(0),
	},
	KindBug: {
		FieldSprintID:    record.Null{},
		FieldTaskID:      record.Null{},
		"description":    record.Null{},
		FieldAssigneeID:  record.Null{},
		FieldAssignee:    record.Null{},
		"estimatedHours": record.Number(0),
		FieldActualHours: record.Number(0),
	},
	KindTeamMember: {
		"avatar":       record.Null{},
		FieldProjectID: record.Null{},
		FieldSprintID:  record.Null{},
	},
	KindTimeEntry: {
		FieldProjectID: record.Null{},
		FieldSprintID:  record.Null{},
		"description":  record.Null{},
	},
}

// Defaults returns the fields a freshly created record of kind k starts with.
func Defaults(k Kind) record.Fields {
	out := make(record.Fields, len(defaults[k]))
	for name, v := range defaults[k] {
		out[name] = v
	}
	return out
}

// CreateFields validates p for creation and returns defaults overlaid with
// the supplied fields. id and timestamps are stamped by the caller.
func CreateFields(p Patch) (record.Fields, error) {
	if m := p.Missing(); len(m) > 0 {
		return nil, apperr.Validation("%s: missing required fields %v", p.Kind(), m)
	}
	if in, ok := p.(TimeEntryInput); ok {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}
	out := Defaults(p.Kind())
	for name, v := range p.Fields() {
		out[name] = v
	}
	return out, nil
}

// NewPatch returns an empty patch for k.
func NewPatch(k Kind) (Patch, error) {
	switch k {
	case KindProject:
		return &ProjectPatch{}, nil
	case KindSprint:
		return &SprintPatch{}, nil
	case KindTask:
		return &TaskPatch{}, nil
	case KindBug:
		return &BugPatch{}, nil
	case KindTeamMember:
		return &TeamMemberPatch{}, nil
	case KindTimeEntry:
		return &TimeEntryInput{}, nil
	default:
		return nil, fmt.Errorf("no patch type for kind %q", k)
	}
}

// DecodePatch decodes one JSON object into the patch for kind k.
// Unknown fields, trailing data, and uncoercible values are VALIDATION errors.
func DecodePatch(k Kind, r io.Reader) (Patch, error) {
	p, err := NewPatch(k)
	if err != nil {
		return nil, apperr.ValidationCause("decode", err)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("%s: empty body", k)
		}
		return nil, apperr.ValidationCause(fmt.Sprintf("%s: invalid payload", k), err)
	}
	if dec.More() {
		return nil, apperr.Validation("%s: unexpected data after object", k)
	}
	return deref(p), nil
}

// DecodePatchBytes is DecodePatch over a byte slice.
func DecodePatchBytes(k Kind, data []byte) (Patch, error) {
	return DecodePatch(k, bytes.NewReader(data))
}

func deref(p Patch) Patch {
	switch v := p.(type) {
	case *ProjectPatch:
		return *v
	case *SprintPatch:
		return *v
	case *TaskPatch:
		return *v
	case *BugPatch:
		return *v
	case *TeamMemberPatch:
		return *v
	case *TimeEntryInput:
		return *v
	}
	return p
}

type requirement struct {
	field   string
	present bool
}

func req(field string, present bool) requirement {
	return requirement{field: field, present: present}
}

func missing(reqs ...requirement) []string {
	var out []string
	for _, r := range reqs {
		if !r.present {
			out = append(out, r.field)
		}
	}
	return out
}
