package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC)

func TestIsOverdue(t *testing.T) {
	tests := []struct {
		name    string
		dueDate time.Time
		want    bool
	}{
		{"due yesterday", now.AddDate(0, 0, -1), true},
		{"due today", now, false},
		{"due today earlier clock time", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false},
		{"due tomorrow", now.AddDate(0, 0, 1), false},
		{"due last month", now.AddDate(0, -1, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOverdue(tt.dueDate, now))
		})
	}
}

func TestIsOverdueIgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	lateSameDay := time.Date(2026, 8, 28, 23, 59, 59, 0, time.UTC)
	assert.False(t, IsOverdue(due, lateSameDay))
	assert.True(t, IsOverdue(due, lateSameDay.AddDate(0, 0, 1)))
}

func TestBorrowWindow(t *testing.T) {
	w := BorrowWindow(now)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.AddDate(0, 0, BorrowLimitDays)))
	assert.False(t, w.Contains(now.AddDate(0, 0, BorrowLimitDays+1)))
	assert.False(t, w.Contains(now.AddDate(0, 0, -1)))
}

func TestRenewWindowUnconstrainedByCurrentDue(t *testing.T) {
	currentDue := now.AddDate(0, 0, 3)
	w := RenewWindow(now, currentDue)
	// a new due date past the current one but within 30 days is allowed
	assert.True(t, w.Contains(now.AddDate(0, 0, 20)))
	assert.True(t, w.Contains(now.AddDate(0, 0, BorrowLimitDays)))
	assert.False(t, w.Contains(now.AddDate(0, 0, BorrowLimitDays+1)))
}

func TestWindowBoundariesInclusive(t *testing.T) {
	w := Window{Min: now, Max: now.AddDate(0, 0, 7)}
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.AddDate(0, 0, 7)))
	// boundary comparison is by date, not clock time
	assert.True(t, w.Contains(time.Date(2026, 9, 4, 23, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)))
}
