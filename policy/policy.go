// Package policy holds the pure date rules for borrowing and renewing.
// Everything operates at calendar-date granularity: the time-of-day portion
// of inputs is ignored.
package policy

import "time"

// BorrowLimitDays is the farthest a due date may lie from today.
const BorrowLimitDays = 30

type Window struct {
	Min time.Time
	Max time.Time
}

// Contains reports whether d falls inside the window, inclusive at both ends.
func (w Window) Contains(d time.Time) bool {
	day := civil(d)
	return !day.Before(civil(w.Min)) && !day.After(civil(w.Max))
}

// IsOverdue is true iff now is strictly past the due date. A loan due today
// is not overdue.
func IsOverdue(dueDate time.Time, now time.Time) bool {
	return civil(now).After(civil(dueDate))
}

// BorrowWindow is the inclusive range a borrow due date must fall in:
// today through today plus 30 days.
func BorrowWindow(now time.Time) Window {
	min := civil(now)
	return Window{Min: min, Max: min.AddDate(0, 0, BorrowLimitDays)}
}

// RenewWindow is the inclusive range a renewal's new due date must fall in.
// The rule is 30 days from now regardless of the current due date; the
// currentDue argument is kept so a stricter cap can be reinstated without
// touching callers.
func RenewWindow(now time.Time, currentDue time.Time) Window {
	_ = currentDue
	return BorrowWindow(now)
}

func civil(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
