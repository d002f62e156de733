package survey

import (
	"sort"
	"time"
)

type ScheduleKind string

const (
	ScheduleOnce   ScheduleKind = "one_time"
	ScheduleWeekly ScheduleKind = "weekly"
	ScheduleDates  ScheduleKind = "specific_dates"
)

// MaxScheduled bounds how many assignments one schedule may create.
const MaxScheduled = 100

const dayLayout = "2006-01-02"

type Window struct {
	StartAt    time.Time
	DeadlineAt time.Time
}

// Schedule describes a set of assignment windows. StartAt and DeadlineAt are
// the template: every occurrence opens at StartAt's UTC time of day and stays
// open for DeadlineAt-StartAt.
type Schedule struct {
	Kind       ScheduleKind
	StartAt    time.Time
	DeadlineAt time.Time
	Weekdays   []time.Weekday // weekly; Sunday is 0
	Until      string         // weekly; last day (YYYY-MM-DD), inclusive
	Dates      []string       // specific_dates; one occurrence per day (YYYY-MM-DD)
}

// Windows expands the schedule in start order. Duplicate days collapse.
func (s Schedule) Windows() ([]Window, error) {
	if err := ValidateWindow(s.StartAt, s.DeadlineAt); err != nil {
		return nil, err
	}
	start := s.StartAt.UTC()
	length := s.DeadlineAt.Sub(s.StartAt)
	first := truncateDay(start)
	offset := start.Sub(first)
	at := func(day time.Time) Window {
		open := day.Add(offset)
		return Window{StartAt: open, DeadlineAt: open.Add(length)}
	}

	switch s.Kind {
	case ScheduleOnce:
		return []Window{{StartAt: start, DeadlineAt: start.Add(length)}}, nil

	case ScheduleWeekly:
		if len(s.Weekdays) == 0 {
			return nil, Validationf("weekly schedule needs at least one weekday")
		}
		on := map[time.Weekday]bool{}
		for _, d := range s.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return nil, Validationf("weekday %d out of range", d)
			}
			on[d] = true
		}
		last, err := parseDay("until", s.Until)
		if err != nil {
			return nil, err
		}
		if last.Before(first) {
			return nil, Validationf("until must not be before start_time")
		}
		var out []Window
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !on[day.Weekday()] {
				continue
			}
			if len(out) == MaxScheduled {
				return nil, Validationf("schedule exceeds %d occurrences", MaxScheduled)
			}
			out = append(out, at(day))
		}
		if len(out) == 0 {
			return nil, Validationf("schedule has no occurrences")
		}
		return out, nil

	case ScheduleDates:
		if len(s.Dates) == 0 {
			return nil, Validationf("specific_dates schedule needs at least one date")
		}
		if len(s.Dates) > MaxScheduled {
			return nil, Validationf("schedule exceeds %d occurrences", MaxScheduled)
		}
		seen := map[time.Time]bool{}
		var out []Window
		for _, raw := range s.Dates {
			day, err := parseDay("dates", raw)
			if err != nil {
				return nil, err
			}
			if seen[day] {
				continue
			}
			seen[day] = true
			out = append(out, at(day))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
		return out, nil
	}
	return nil, Validationf("unknown schedule_type %q", s.Kind)
}

func parseDay(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, Validationf("%s is required", field)
	}
	d, err := time.ParseInLocation(dayLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, Validationf("%s: %q is not a YYYY-MM-DD date", field, v)
	}
	return d, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
