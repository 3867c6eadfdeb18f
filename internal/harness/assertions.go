package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

type evaluator struct {
	ctx     context.Context
	store   record.Store
	aliases map[string]string
}

// evaluate returns one message per failed assertion.
func (e *evaluator) evaluate(trace []TraceEvent, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := e.assert(trace, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func (e *evaluator) assert(trace []TraceEvent, a Assertion) error {
	var kind entity.Kind
	if a.Kind != "" {
		k, err := entity.ParseKind(a.Kind)
		if err != nil {
			return err
		}
		kind = k
	}

	switch a.Type {
	case AssertFinalState:
		return e.finalState(kind, a)
	case AssertStateCount:
		return e.stateCount(kind, a)
	case AssertTraceContains:
		outcome := a.Outcome
		if outcome == "" {
			outcome = OutcomeOK
		}
		for _, ev := range trace {
			if matchesEvent(ev, a.Op, kind) && ev.Outcome == outcome {
				return nil
			}
		}
		return fmt.Errorf("no %s step with outcome %s", stepLabel(a.Op, kind), outcome)
	case AssertTraceCount:
		n := 0
		for _, ev := range trace {
			if matchesEvent(ev, a.Op, kind) {
				n++
			}
		}
		if n != a.Count {
			return fmt.Errorf("expected %d %s steps, got %d", a.Count, stepLabel(a.Op, kind), n)
		}
		return nil
	case AssertTraceOrder:
		return traceOrder(trace, a.Steps)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (e *evaluator) finalState(kind entity.Kind, a Assertion) error {
	id, err := resolveAlias(a.ID, e.aliases)
	if err != nil {
		return err
	}
	rec, err := e.store.GetOne(e.ctx, kind.Collection(), id)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return matchFields(rec, a.Expect, e.aliases)
}

func (e *evaluator) stateCount(kind entity.Kind, a Assertion) error {
	filter := record.Filter{}
	for field, raw := range a.Where {
		v, err := aliasValue(raw, e.aliases)
		if err != nil {
			return fmt.Errorf("where %s: %w", field, err)
		}
		filter[field] = v
	}
	recs, err := e.store.Find(e.ctx, kind.Collection(), filter)
	if err != nil {
		return fmt.Errorf("find %s: %w", kind, err)
	}
	if len(recs) != a.Count {
		return fmt.Errorf("expected %d %s records matching %s, got %d", a.Count, kind, filter, len(recs))
	}
	return nil
}

func stepLabel(op string, kind entity.Kind) string {
	if kind == "" {
		return op
	}
	return op + " " + string(kind)
}

func matchesEvent(ev TraceEvent, op string, kind entity.Kind) bool {
	if ev.Op != op {
		return false
	}
	return kind == "" || ev.Kind == string(kind)
}

// traceOrder checks that steps appear as a subsequence of the trace.
func traceOrder(trace []TraceEvent, steps []string) error {
	want := make([]string, len(steps))
	for i, s := range steps {
		want[i] = normalizeLabel(s)
	}
	next := 0
	for _, ev := range trace {
		if next < len(want) && ev.Label() == want[next] {
			next++
		}
	}
	if next < len(want) {
		return fmt.Errorf("step %q not found in order", steps[next])
	}
	return nil
}

// normalizeLabel canonicalizes the kind half of an "op kind" label, so
// "delete tasks" and "delete task" are the same step.
func normalizeLabel(s string) string {
	var op, kind string
	if _, err := fmt.Sscan(s, &op, &kind); err != nil {
		return s
	}
	k, err := entity.ParseKind(kind)
	if err != nil {
		return s
	}
	return op + " " + string(k)
}

// matchFields checks that rec carries every field in want. A null
// expectation also matches an absent field.
func matchFields(rec record.Record, want map[string]any, aliases map[string]string) error {
	fields := make([]string, 0, len(want))
	for f := range want {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		wv, err := aliasValue(want[f], aliases)
		if err != nil {
			return fmt.Errorf("field %s: %w", f, err)
		}
		got, ok := rec[f]
		if !ok {
			got = record.Null{}
		}
		if !record.Equal(wv, got) {
			return fmt.Errorf("field %s: expected %s, got %s", f, valueString(wv), valueString(got))
		}
	}
	return nil
}

func aliasValue(raw any, aliases map[string]string) (record.Value, error) {
	if s, ok := raw.(string); ok {
		id, err := resolveAlias(s, aliases)
		if err != nil {
			return nil, err
		}
		raw = id
	}
	return record.ToValue(raw)
}

func valueString(v record.Value) string {
	b, err := record.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
