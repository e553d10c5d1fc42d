package grading

import "time"

// Deadline is the authoritative end of an attempt, fixed at start.
func Deadline(startedAt time.Time, limit time.Duration) time.Time {
	return startedAt.Add(limit)
}

// Remaining returns max(0, deadline - now).
func Remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsLate reports whether a submission exceeded the time limit plus grace.
func IsLate(startedAt, submittedAt time.Time, limit, grace time.Duration) bool {
	return submittedAt.Sub(startedAt) > limit+grace
}

// Expired reports whether an in-progress attempt can no longer be resumed.
func Expired(deadline, now time.Time, grace time.Duration) bool {
	return now.After(deadline.Add(grace))
}
