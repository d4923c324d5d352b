package timeslot

import "testing"

func TestGenerate_StandardDay(t *testing.T) {
	slots := Generate("09:00-17:00", 30, 15)
	if len(slots) != 31 {
		t.Fatalf("expected 31 slots, got %d", len(slots))
	}
	if slots[0] != "09:00" {
		t.Fatalf("expected first slot 09:00, got %s", slots[0])
	}
	if slots[len(slots)-1] != "16:30" {
		t.Fatalf("expected last slot 16:30, got %s", slots[len(slots)-1])
	}
}

func TestGenerate_DurationFillsWindowExactly(t *testing.T) {
	// 60-minute service in a one-hour window: the single slot that ends
	// exactly at close is bookable.
	slots := Generate("09:00-10:00", 60, 15)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0] != "09:00" {
		t.Fatalf("expected slot 09:00, got %s", slots[0])
	}
}

func TestGenerate_IntervalLargerThanSpan(t *testing.T) {
	slots := Generate("09:00-10:00", 30, 120)
	if len(slots) != 1 {
		t.Fatalf("expected at most one slot, got %d", len(slots))
	}
}

func TestGenerate_DurationLongerThanInterval(t *testing.T) {
	// Starts still advance by the interval even when bookings would overlap.
	slots := Generate("09:00-11:00", 30, 120)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	slots = Generate("09:00-17:00", 30, 120)
	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			t.Fatalf("slots not strictly ascending: %v", slots)
		}
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots at a 2h step, got %d: %v", len(slots), slots)
	}
}

func TestGenerate_BadFormatYieldsNoSlots(t *testing.T) {
	for _, raw := range []string{"bad-format", "9am-5pm", "09:00", "25:00-26:00", "09:xx-17:00"} {
		if slots := Generate(raw, 30, 15); len(slots) != 0 {
			t.Fatalf("expected no slots for %q, got %v", raw, slots)
		}
	}
}

func TestGenerate_MidnightSpanUnsupported(t *testing.T) {
	if slots := Generate("22:00-02:00", 30, 15); len(slots) != 0 {
		t.Fatalf("expected no slots for a midnight-spanning window, got %v", slots)
	}
	if slots := Generate("09:00-09:00", 15, 15); len(slots) != 0 {
		t.Fatalf("expected no slots for a zero-width window, got %v", slots)
	}
}

func TestGenerate_DefaultsWhenUnset(t *testing.T) {
	slots := Generate("", 0, 0)
	want := Generate(DefaultWorkingHours, DefaultDurationMinutes, DefaultIntervalMinutes)
	if len(slots) != len(want) {
		t.Fatalf("expected default sequence of %d slots, got %d", len(want), len(slots))
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "16:45" {
		t.Fatalf("unexpected default sequence bounds: %s..%s", slots[0], slots[len(slots)-1])
	}
}

func TestGenerate_Pure(t *testing.T) {
	a := Generate("08:30-12:00", 45, 20)
	b := Generate("08:30-12:00", 45, 20)
	if len(a) != len(b) {
		t.Fatalf("repeated calls disagree: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("repeated calls disagree at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestGenerate_WindowBounds(t *testing.T) {
	for _, tc := range []struct {
		hours    string
		duration int
		interval int
	}{
		{"09:00-17:00", 30, 15},
		{"06:15-08:45", 25, 10},
		{"00:00-23:59", 90, 45},
	} {
		slots := Generate(tc.hours, tc.duration, tc.interval)
		open, close, ok := parseWindow(tc.hours)
		if !ok {
			t.Fatalf("window %q should parse", tc.hours)
		}
		for _, s := range slots {
			start, ok := parseClock(s)
			if !ok {
				t.Fatalf("generated slot %q does not parse", s)
			}
			if start < open {
				t.Fatalf("slot %s before open in %q", s, tc.hours)
			}
			if start+tc.duration > close {
				t.Fatalf("slot %s overruns close in %q", s, tc.hours)
			}
		}
	}
}
