// Package time holds time helpers shared by repos and responses
package time

import "time"

// Millis returns t as unix milliseconds, or 0 for the zero time
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Clock returns the current time; services take one so tests can pin it
type Clock func() time.Time

// Fixed returns a Clock that always reports t
func Fixed(t time.Time) Clock { return func() time.Time { return t } }
