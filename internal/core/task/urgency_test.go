package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func dueIn(now time.Time, d time.Duration) *time.Time {
	due := now.Add(d)
	return &due
}

func TestClassify(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want Tier
	}{
		{
			name: "30 minutes out is critical",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, 30*time.Minute)},
			want: TierCritical,
		},
		{
			name: "exactly now is critical",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, 0)},
			want: TierCritical,
		},
		{
			name: "exactly one hour is warning",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, time.Hour)},
			want: TierWarning,
		},
		{
			name: "two hours out is warning",
			task: Task{Title: "a", Status: StatusPrincipal, Due: dueIn(now, 2*time.Hour)},
			want: TierWarning,
		},
		{
			name: "exactly four hours is none",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, 4*time.Hour)},
			want: TierNone,
		},
		{
			name: "five hours out is none",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, 5*time.Hour)},
			want: TierNone,
		},
		{
			name: "overdue is none",
			task: Task{Title: "a", Status: StatusPending, Due: dueIn(now, -time.Minute)},
			want: TierNone,
		},
		{
			name: "done is none regardless of due",
			task: Task{Title: "a", Status: StatusDone, Due: dueIn(now, 30*time.Minute)},
			want: TierNone,
		},
		{
			name: "no due is none",
			task: Task{Title: "a", Status: StatusPending},
			want: TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.task, now))
		})
	}
}

func TestClassify_ZoneIndependent(t *testing.T) {
	madrid := LoadLocation("Europe/Madrid")
	tokyo := LoadLocation("Asia/Tokyo")

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(30 * time.Minute).In(madrid)
	task := Task{Title: "a", Status: StatusPending, Due: &due}

	assert.Equal(t, TierCritical, Classify(task, now))
	assert.Equal(t, TierCritical, Classify(task, now.In(tokyo)))
}

func TestWindows_Classify_Custom(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	w := Windows{Critical: 30 * time.Minute, Warning: time.Hour}

	assert.Equal(t, TierWarning, w.Classify(Task{Due: dueIn(now, 45*time.Minute)}, now))
	assert.Equal(t, TierCritical, w.Classify(Task{Due: dueIn(now, 10*time.Minute)}, now))
	assert.Equal(t, TierNone, w.Classify(Task{Due: dueIn(now, 2*time.Hour)}, now))
}

func TestTiers(t *testing.T) {
	var ts Tiers
	assert.False(t, ts.Has(TierWarning))
	assert.Equal(t, "-", ts.String())

	ts |= TierWarning.Bit()
	assert.True(t, ts.Has(TierWarning))
	assert.False(t, ts.Has(TierCritical))
	assert.False(t, ts.Has(TierNone))

	ts |= TierCritical.Bit()
	assert.Equal(t, "warning,critical", ts.String())
}
