package demand

import "time"

// Detector tracks debounced switch states and reports when they change.
// Debouncing itself happens at read time; the detector only compares
// successive snapshots.
type Detector struct {
	stable        SwitchStates
	baselined     bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a change detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		stable:        make(SwitchStates),
		startTime:     startTime,
		eventCounts:   make(EventCounts),
		lastHeartbeat: startTime,
	}
}

// Process records a new snapshot and reports whether it should be acted on:
// true for the first snapshot (baseline) and whenever any switch changed.
// Switches missing from the snapshot keep their previous state.
func (d *Detector) Process(states SwitchStates, now time.Time) bool {
	if !d.baselined {
		for sw, s := range states {
			d.stable[sw] = s
		}
		d.baselined = len(states) > 0
		return d.baselined
	}

	changed := false
	for sw, s := range states {
		prev, seen := d.stable[sw]
		if seen && prev == s {
			continue
		}
		d.stable[sw] = s
		changed = true

		counts := d.eventCounts[sw]
		if s == On {
			counts.On++
		} else {
			counts.Off++
		}
		d.eventCounts[sw] = counts
	}
	return changed
}

// IsBaselined returns whether the detector has seen a first snapshot.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns a copy of the stable switch states.
func (d *Detector) CurrentState() SwitchStates {
	out := make(SwitchStates, len(d.stable))
	for k, v := range d.stable {
		out[k] = v
	}
	return out
}

// EventCountsSnapshot returns a copy of the transition counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts.Clone()
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts.Clone(),
	}
}
