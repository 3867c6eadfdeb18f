// Package clock abstracts wall-clock time so timestamps are deterministic in tests.
package clock

import "time"

// Clock supplies the current time for createdAt/updatedAt stamps.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Stamp formats t the way every record timestamp is stored.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
