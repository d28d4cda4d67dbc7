package task

import (
	"strings"
	"time"
)

// Tier is an urgency classification bucket.
type Tier string

const (
	TierNone     Tier = "none"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// Tiers is a bitmask of tiers, used to record which alerts were delivered for
// a task's current due window.
type Tiers uint8

const (
	NotifiedWarning Tiers = 1 << iota
	NotifiedCritical
)

// Bit returns the mask bit for a tier. TierNone has no bit.
func (t Tier) Bit() Tiers {
	switch t {
	case TierWarning:
		return NotifiedWarning
	case TierCritical:
		return NotifiedCritical
	default:
		return 0
	}
}

// Has reports whether the tier bit is set.
func (ts Tiers) Has(t Tier) bool {
	b := t.Bit()
	return b != 0 && ts&b == b
}

func (ts Tiers) String() string {
	var parts []string
	if ts.Has(TierWarning) {
		parts = append(parts, string(TierWarning))
	}
	if ts.Has(TierCritical) {
		parts = append(parts, string(TierCritical))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// Windows are the lead times that define the urgency tiers. A task is
// critical when due within Critical and warning when due within Warning.
type Windows struct {
	Critical time.Duration
	Warning  time.Duration
}

// DefaultWindows is one hour critical, four hours warning.
var DefaultWindows = Windows{Critical: time.Hour, Warning: 4 * time.Hour}

// Classify returns the urgency tier of t at now using DefaultWindows.
func Classify(t Task, now time.Time) Tier {
	return DefaultWindows.Classify(t, now)
}

// Classify returns the urgency tier of t at now. Done and undated tasks are
// never urgent, and overdue tasks fall outside every window. Only instants are
// compared, so the zone of either time does not matter.
func (w Windows) Classify(t Task, now time.Time) Tier {
	if t.Status == StatusDone || !t.HasDue() {
		return TierNone
	}

	delta := t.Due.Sub(now)
	switch {
	case delta < 0:
		return TierNone
	case delta < w.Critical:
		return TierCritical
	case delta < w.Warning:
		return TierWarning
	default:
		return TierNone
	}
}
