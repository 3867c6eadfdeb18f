// Package harness runs YAML scenarios against the tracker.
//
// A scenario is a sequence of tracker operations followed by assertions on
// the resulting trace and final store state. Each run gets a fresh store, a
// fixed clock, and sequential ids, so traces are byte-stable and can be
// snapshotted as golden files.
//
// # Scenario Format
//
//	name: delete_task_purges_entries
//	description: "Deleting a task removes its time entries"
//	seed: fixtures/base.cue      # optional, relative to the scenario file
//	flow:
//	  - op: create
//	    kind: task
//	    as: t1
//	    body: { projectId: $website, title: "x", status: Done, priority: Low }
//	  - op: delete
//	    kind: task
//	    id: $t1
//	    expect: { error: "" }
//	assertions:
//	  - type: state_count
//	    kind: time_entry
//	    where: { taskId: $t1 }
//	    count: 0
//
// Strings of the form $name resolve to the id created by a step with
// `as: name` or by a seed entry keyed name.
//
// # Operations
//
//   - create: body is the entity patch; `as` names the new id
//   - update: id and body
//   - delete: id
//   - get: id
//   - list: optional filter with project_id, sprint_id, task_id, assignee_id
//   - recalc: recalculates one sprint (id) or every sprint (no id)
//
// # Assertion Types
//
//   - final_state: the kind/id record has the expected field values (subset)
//   - state_count: exactly count records of kind match where
//   - trace_contains: some step ran op on kind with the given outcome
//   - trace_count: op on kind ran exactly count times
//   - trace_order: steps appear in the given order ("op kind" entries)
package harness
