package survey

import "time"

type AssignmentStatus string

const (
	StatusUpcoming  AssignmentStatus = "upcoming"
	StatusActive    AssignmentStatus = "active"
	StatusCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// DeriveStatus maps the window [start, deadline) onto a status at now.
// The deadline belongs to completed.
func DeriveStatus(start, deadline, now time.Time) AssignmentStatus {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.Before(deadline):
		return StatusActive
	default:
		return StatusCompleted
	}
}

// WithStatus returns a copy of a annotated with its status at now.
func (a Assignment) WithStatus(now time.Time) Assignment {
	a.Status = DeriveStatus(a.StartAt, a.DeadlineAt, now)
	return a
}

// ValidateWindow enforces start < deadline.
func ValidateWindow(start, deadline time.Time) error {
	if start.IsZero() || deadline.IsZero() {
		return Validationf("start_time and deadline_time are required")
	}
	if !start.Before(deadline) {
		return Validationf("start_time must be before deadline_time")
	}
	return nil
}
