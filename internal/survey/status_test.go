package survey

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestDeriveStatusWindow(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	deadline := mustTime(t, "2024-01-08T00:00:00Z")

	cases := []struct {
		now  string
		want AssignmentStatus
	}{
		{"2023-12-31T00:00:00Z", StatusUpcoming},
		{"2024-01-01T00:00:00Z", StatusActive},
		{"2024-01-05T00:00:00Z", StatusActive},
		{"2024-01-07T23:59:59Z", StatusActive},
		{"2024-01-08T00:00:00Z", StatusCompleted},
		{"2024-02-01T00:00:00Z", StatusCompleted},
	}
	for _, c := range cases {
		if got := DeriveStatus(start, deadline, mustTime(t, c.now)); got != c.want {
			t.Fatalf("DeriveStatus(now=%s) = %q, want %q", c.now, got, c.want)
		}
	}
}

func TestDeriveStatusIsExhaustive(t *testing.T) {
	start := mustTime(t, "2024-03-10T12:00:00Z")
	deadline := start.Add(36 * time.Hour)
	for now := start.Add(-48 * time.Hour); now.Before(deadline.Add(48 * time.Hour)); now = now.Add(30 * time.Minute) {
		s := DeriveStatus(start, deadline, now)
		if !s.Valid() {
			t.Fatalf("DeriveStatus(%s) = %q, not a known status", now, s)
		}
		wantActive := !now.Before(start) && now.Before(deadline)
		if (s == StatusActive) != wantActive {
			t.Fatalf("DeriveStatus(%s) = %q, active want %v", now, s, wantActive)
		}
	}
}

func TestValidateWindow(t *testing.T) {
	a := mustTime(t, "2024-01-01T00:00:00Z")
	b := a.Add(time.Hour)
	if err := ValidateWindow(a, b); err != nil {
		t.Fatalf("ValidateWindow(a<b) = %v", err)
	}
	if err := ValidateWindow(a, a); err == nil {
		t.Fatalf("ValidateWindow(a==a) = nil, want error")
	}
	if err := ValidateWindow(b, a); err == nil {
		t.Fatalf("ValidateWindow(b>a) = nil, want error")
	}
	if err := ValidateWindow(time.Time{}, b); err == nil {
		t.Fatalf("ValidateWindow(zero start) = nil, want error")
	}
}
