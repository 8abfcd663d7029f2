package clock

import (
	"testing"
	"time"
)

func TestDay_UsesLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	// 20:00 UTC on the 9th is 03:00 on the 10th at UTC+7.
	instant := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)
	got := Day(instant, loc)
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestAt(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	got := At(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 9*60+30, loc)
	if got.Hour() != 9 || got.Minute() != 30 || got.Location() != loc {
		t.Errorf("unexpected instant %s", got)
	}
}

func TestDaysInclusive(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2025-03-10", "2025-03-10", 1},
		{"2025-03-10", "2025-03-14", 5},
		{"2024-12-30", "2025-01-02", 4},
		{"2025-03-10", "2025-03-09", 0},
	}
	for _, tt := range tests {
		s, _ := ParseDay(tt.start)
		e, _ := ParseDay(tt.end)
		if got := DaysInclusive(s, e); got != tt.want {
			t.Errorf("DaysInclusive(%s, %s) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestFixed(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	if !Today(Fixed{T: now}, time.UTC).Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected Today to truncate the fixed instant")
	}
}
