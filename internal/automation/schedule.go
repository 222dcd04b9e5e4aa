package automation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ScheduleTable holds the weekday-keyed watering times and remembers the
// last fired slot, so a given minute can trigger at most once per day no
// matter how often the loop ticks.
type ScheduleTable struct {
	mu      sync.Mutex
	entries map[string][]string // lowercase weekday -> "HH:MM"
	lastDay string              // "2006-01-02" of the last fire
	lastHM  string
}

func NewScheduleTable() *ScheduleTable {
	return &ScheduleTable{entries: make(map[string][]string)}
}

// Set validates and replaces the schedule. Keys are weekday names, values
// "HH:MM" times.
func (s *ScheduleTable) Set(entries map[string][]string) error {
	clean := make(map[string][]string, len(entries))
	for day, times := range entries {
		d := strings.ToLower(strings.TrimSpace(day))
		if !weekdays[d] {
			return fmt.Errorf("invalid weekday %q", day)
		}
		for _, hm := range times {
			if _, err := time.Parse("15:04", hm); err != nil {
				return fmt.Errorf("invalid time %q for %s", hm, d)
			}
		}
		clean[d] = append([]string(nil), times...)
	}
	s.mu.Lock()
	s.entries = clean
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the schedule.
func (s *ScheduleTable) Snapshot() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.entries))
	for d, times := range s.entries {
		out[d] = append([]string(nil), times...)
	}
	return out
}

// Due reports whether a scheduled watering should fire at now, and records
// the fire so the same minute cannot trigger twice.
func (s *ScheduleTable) Due(now time.Time) bool {
	day := strings.ToLower(now.Weekday().String())
	hm := now.Format("15:04")
	date := now.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, t := range s.entries[day] {
		if t == hm {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if s.lastDay == date && s.lastHM == hm {
		return false
	}
	s.lastDay, s.lastHM = date, hm
	return true
}
