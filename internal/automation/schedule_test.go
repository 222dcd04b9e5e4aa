package automation

import (
	"testing"
	"time"
)

func TestScheduleTableSetValidation(t *testing.T) {
	s := NewScheduleTable()

	if err := s.Set(map[string][]string{"Monday": {"07:30"}, "friday": {"18:00", "06:15"}}); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if err := s.Set(map[string][]string{"funday": {"07:30"}}); err == nil {
		t.Error("invalid weekday accepted")
	}
	if err := s.Set(map[string][]string{"monday": {"25:00"}}); err == nil {
		t.Error("invalid time accepted")
	}
	if err := s.Set(map[string][]string{"monday": {"7:30pm"}}); err == nil {
		t.Error("non HH:MM time accepted")
	}
}

func TestScheduleTableDueDedupesWithinMinute(t *testing.T) {
	s := NewScheduleTable()
	if err := s.Set(map[string][]string{"saturday": {"08:00"}}); err != nil {
		t.Fatal(err)
	}

	// 2026-08-01 is a Saturday.
	at := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	if !s.Due(at) {
		t.Fatal("first tick inside the scheduled minute should fire")
	}
	for i := 1; i < 60; i++ {
		if s.Due(at.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("tick %d inside the same minute fired again", i)
		}
	}
	if s.Due(at.Add(time.Minute)) {
		t.Error("the following minute should not fire")
	}
	if !s.Due(at.Add(7 * 24 * time.Hour)) {
		t.Error("the same slot a week later should fire again")
	}
}

func TestScheduleTableDueOffSchedule(t *testing.T) {
	s := NewScheduleTable()
	if err := s.Set(map[string][]string{"saturday": {"08:00"}}); err != nil {
		t.Fatal(err)
	}
	// Sunday at the scheduled time.
	if s.Due(time.Date(2026, 8, 2, 8, 0, 0, 0, time.UTC)) {
		t.Error("a different weekday should not fire")
	}
	if s.Due(time.Date(2026, 8, 1, 8, 1, 0, 0, time.UTC)) {
		t.Error("a different minute should not fire")
	}
}

func TestScheduleTableSnapshotIsCopy(t *testing.T) {
	s := NewScheduleTable()
	if err := s.Set(map[string][]string{"monday": {"07:30"}}); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	snap["monday"][0] = "00:00"
	if got := s.Snapshot()["monday"][0]; got != "07:30" {
		t.Errorf("snapshot mutation leaked into the table: %q", got)
	}
}
