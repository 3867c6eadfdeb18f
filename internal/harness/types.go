package harness

// Outcome values recorded for steps that did not fail.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Op   string `json:"op"`
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
	// Outcome is OutcomeOK or the error code.
	Outcome string `json:"outcome"`
	Result  any    `json:"result,omitempty"`
}

// Label is the "op kind" form used by trace_order.
func (e TraceEvent) Label() string {
	return e.Op + " " + e.Kind
}

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors is empty when Pass is true.
	Errors []string `json:"errors"`

	// IDs maps aliases to created ids.
	IDs map[string]string `json:"ids"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		IDs:    make(map[string]string),
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
