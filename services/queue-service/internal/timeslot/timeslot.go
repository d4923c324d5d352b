package timeslot

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied when a company or service has not been fully configured.
// Substituting them is policy, not error suppression: a bookable page must
// still show slots while the business finishes setup.
const (
	DefaultWorkingHours    = "09:00-17:00"
	DefaultDurationMinutes = 15
	DefaultIntervalMinutes = 15
)

// Generate returns the bookable start times for one day as zero-padded
// "HH:MM" strings, ascending. Starting at the open time it emits a slot
// whenever the full service duration still fits before close, then advances
// by interval.
//
// An empty workingHours falls back to DefaultWorkingHours; non-positive
// duration or interval fall back to 15 minutes. A present but unparsable
// window yields no slots (the company simply has no bookable hours), as does
// a window whose close does not come after its open — midnight-spanning
// hours are not supported.
func Generate(workingHours string, durationMinutes, intervalMinutes int) []string {
	if strings.TrimSpace(workingHours) == "" {
		workingHours = DefaultWorkingHours
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	if intervalMinutes <= 0 {
		intervalMinutes = DefaultIntervalMinutes
	}

	open, close, ok := parseWindow(workingHours)
	if !ok || close <= open {
		return nil
	}

	var slots []string
	for t := open; t+durationMinutes <= close; t += intervalMinutes {
		slots = append(slots, fmt.Sprintf("%02d:%02d", t/60, t%60))
	}
	return slots
}

func parseWindow(raw string) (open, close int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	open, ok = parseClock(parts[0])
	if !ok {
		return 0, 0, false
	}
	close, ok = parseClock(parts[1])
	if !ok {
		return 0, 0, false
	}
	return open, close, true
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(raw string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
