// Package seed loads CUE fixtures and replays them through the tracker.
//
// A fixture is a CUE file with up to six top-level structs (projects,
// sprints, team, tasks, bugs, time_entries), each mapping a symbolic key to
// an entity body. Reference fields hold keys; Apply swaps them for the ids
// the tracker assigns. Entries are created in dependency order and, within a
// collection, in declaration order.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

//go:embed schema.cue
var schemaSrc []byte

//go:embed demo.cue
var demoSrc []byte

// sections lists fixture collections in creation order.
var sections = []struct {
	label string
	kind  entity.Kind
}{
	{"projects", entity.KindProject},
	{"sprints", entity.KindSprint},
	{"team", entity.KindTeamMember},
	{"tasks", entity.KindTask},
	{"bugs", entity.KindBug},
	{"time_entries", entity.KindTimeEntry},
}

var refFields = []string{
	entity.FieldProjectID,
	entity.FieldSprintID,
	entity.FieldTaskID,
	entity.FieldAssigneeID,
}

// Entry is one fixture record.
type Entry struct {
	Key  string
	Kind entity.Kind
	Body map[string]any
}

// Fixture is a validated, ordered set of entries.
type Fixture struct {
	Entries []Entry
}

// Count returns the number of entries of kind.
func (f *Fixture) Count(kind entity.Kind) int {
	n := 0
	for _, e := range f.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Load reads and validates the fixture at path.
func Load(path string) (*Fixture, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(path, src)
}

// Demo returns the bundled demo fixture.
func Demo() (*Fixture, error) {
	return Parse("demo.cue", demoSrc)
}

// Parse validates src against the fixture schema.
func Parse(filename string, src []byte) (*Fixture, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Fixture")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	fx := &Fixture{Entries: []Entry{}}
	seen := make(map[string]string)
	for _, sec := range sections {
		sv := v.LookupPath(cue.ParsePath(sec.label))
		if !sv.Exists() {
			continue
		}
		iter, err := sv.Fields()
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", sec.label, err)
		}
		for iter.Next() {
			key := iter.Label()
			if prev, dup := seen[key]; dup {
				return nil, fmt.Errorf("%s: key %q used in both %s and %s", filename, key, prev, sec.label)
			}
			seen[key] = sec.label

			raw, err := iter.Value().MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", sec.label, key, err)
			}
			var body map[string]any
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", sec.label, key, err)
			}
			fx.Entries = append(fx.Entries, Entry{Key: key, Kind: sec.kind, Body: body})
		}
	}
	return fx, nil
}

// Creator is the subset of tracker.Service that Apply needs.
type Creator interface {
	Create(ctx context.Context, p entity.Patch) (record.Record, error)
}

// Result maps fixture keys to created ids.
type Result struct {
	IDs     map[string]string   `json:"ids"`
	Created map[entity.Kind]int `json:"created"`
}

// Apply creates every entry through svc. It stops at the first failure;
// entries created before it remain.
func Apply(ctx context.Context, svc Creator, fx *Fixture) (Result, error) {
	res := Result{IDs: make(map[string]string), Created: make(map[entity.Kind]int)}
	for _, e := range fx.Entries {
		body, err := resolve(e, res.IDs)
		if err != nil {
			return res, err
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return res, fmt.Errorf("encode %s: %w", e.Key, err)
		}
		p, err := entity.DecodePatchBytes(e.Kind, raw)
		if err != nil {
			return res, fmt.Errorf("seed %s %q: %w", e.Kind, e.Key, err)
		}
		rec, err := svc.Create(ctx, p)
		if err != nil {
			return res, fmt.Errorf("seed %s %q: %w", e.Kind, e.Key, err)
		}
		res.IDs[e.Key] = rec.ID()
		res.Created[e.Kind]++
	}
	return res, nil
}

// resolve swaps key references for ids. A reference must name an entry
// created earlier in the fixture.
func resolve(e Entry, ids map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(e.Body))
	for k, v := range e.Body {
		out[k] = v
	}
	for _, field := range refFields {
		key, ok := out[field].(string)
		if !ok {
			continue
		}
		id, ok := ids[key]
		if !ok {
			return nil, fmt.Errorf("seed %s %q: %s references unknown key %q", e.Kind, e.Key, field, key)
		}
		out[field] = id
	}
	return out, nil
}
