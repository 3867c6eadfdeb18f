package entity

import (
	"fmt"

	"github.com/roach88/sprintledger/internal/record"
)

// Policy is what happens to a dependent when the referenced parent is deleted.
type Policy int

const (
	// PolicyOrphan leaves the dependent untouched.
	PolicyOrphan Policy = iota
	// PolicyClear sets the reference field (and any Clears fields) to null.
	PolicyClear
	// PolicyDelete removes the dependent outright.
	PolicyDelete
)

func (p Policy) String() string {
	switch p {
	case PolicyClear:
		return "clear"
	case PolicyDelete:
		return "delete"
	default:
		return "orphan"
	}
}

// Reference describes one field of a kind that points at another kind.
type Reference struct {
	Field  string
	Target Kind
	Policy Policy

	// Clears lists denormalized fields nulled together with Field.
	Clears []string

	// Match narrows which dependents the reference applies to,
	// e.g. only bug time entries point at bugs through taskId.
	Match record.Filter
}

// Definition is the registry entry for one kind.
type Definition struct {
	Kind       Kind
	References []Reference
}

// Dependent is a (kind, reference) pair pointing at some target kind.
type Dependent struct {
	Kind      Kind
	Reference Reference
}

// Filter selects the dependents of the parent with the given id.
func (d Dependent) Filter(parentID string) record.Filter {
	f := record.Eq(d.Reference.Field, record.String(parentID))
	for k, v := range d.Reference.Match {
		f = f.And(k, v)
	}
	return f
}

// Registry indexes definitions by kind.
type Registry struct {
	order []Kind
	defs  map[Kind]Definition
}

// NewRegistry validates defs and builds a registry. Order is preserved and
// determines cascade step order.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Kind]Definition, len(defs))}
	for _, d := range defs {
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("registry: unknown kind %q", d.Kind)
		}
		if _, dup := r.defs[d.Kind]; dup {
			return nil, fmt.Errorf("registry: duplicate kind %q", d.Kind)
		}
		for _, ref := range d.References {
			if !ref.Target.Valid() {
				return nil, fmt.Errorf("registry: %s.%s targets unknown kind %q", d.Kind, ref.Field, ref.Target)
			}
			if err := record.ValidateField(ref.Field); err != nil {
				return nil, fmt.Errorf("registry: %s: %w", d.Kind, err)
			}
		}
		r.defs[d.Kind] = d
		r.order = append(r.order, d.Kind)
	}
	return r, nil
}

// Definition returns the entry for k.
func (r *Registry) Definition(k Kind) (Definition, bool) {
	d, ok := r.defs[k]
	return d, ok
}

// Kinds returns registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// Dependents returns every reference that targets k, in registry order.
func (r *Registry) Dependents(k Kind) []Dependent {
	var out []Dependent
	for _, kind := range r.order {
		for _, ref := range r.defs[kind].References {
			if ref.Target == k {
				out = append(out, Dependent{Kind: kind, Reference: ref})
			}
		}
	}
	return out
}

// References returns the outgoing references of k.
func (r *Registry) References(k Kind) []Reference {
	return r.defs[k].References
}

var defaultRegistry = mustRegistry(
	Definition{Kind: KindProject},
	Definition{Kind: KindSprint, References: []Reference{
		{Field: FieldProjectID, Target: KindProject, Policy: PolicyOrphan},
	}},
	Definition{Kind: KindTask, References: []Reference{
		{Field: FieldProjectID, Target: KindProject, Policy: PolicyOrphan},
		{Field: FieldSprintID, Target: KindSprint, Policy: PolicyClear},
		{Field: FieldAssigneeID, Target: KindTeamMember, Policy: PolicyClear, Clears: []string{FieldAssignee}},
	}},
	Definition{Kind: KindBug, References: []Reference{
		{Field: FieldProjectID, Target: KindProject, Policy: PolicyOrphan},
		{Field: FieldSprintID, Target: KindSprint, Policy: PolicyClear},
		{Field: FieldTaskID, Target: KindTask, Policy: PolicyClear},
		{Field: FieldAssigneeID, Target: KindTeamMember, Policy: PolicyClear, Clears: []string{FieldAssignee}},
	}},
	Definition{Kind: KindTeamMember, References: []Reference{
		{Field: FieldProjectID, Target: KindProject, Policy: PolicyOrphan},
		{Field: FieldSprintID, Target: KindSprint, Policy: PolicyOrphan},
	}},
	Definition{Kind: KindTimeEntry, References: []Reference{
		{Field: FieldTaskID, Target: KindTask, Policy: PolicyDelete},
		{Field: FieldTaskID, Target: KindBug, Policy: PolicyDelete,
			Match: record.Filter{FieldIsBugEntry: record.Bool(true)}},
		{Field: FieldProjectID, Target: KindProject, Policy: PolicyOrphan},
		{Field: FieldSprintID, Target: KindSprint, Policy: PolicyOrphan},
	}},
)

// Default returns the tracker's registry.
func Default() *Registry {
	return defaultRegistry
}

func mustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}
