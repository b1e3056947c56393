package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from IncidentStatus
		to   IncidentStatus
		want bool
	}{
		{IncidentOpen, IncidentAnalyzing, true},
		{IncidentOpen, IncidentResolved, true},
		{IncidentOpen, IncidentClosed, true},
		{IncidentAnalyzing, IncidentOpen, true},
		{IncidentAnalyzing, IncidentResolved, true},
		{IncidentAnalyzing, IncidentClosed, true},
		{IncidentResolved, IncidentClosed, true},
		// resolved/closed는 불변: 재오픈 불가
		{IncidentResolved, IncidentOpen, false},
		{IncidentResolved, IncidentAnalyzing, false},
		{IncidentClosed, IncidentOpen, false},
		{IncidentClosed, IncidentResolved, false},
		{IncidentOpen, IncidentOpen, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsOpen(t *testing.T) {
	for _, tc := range []struct {
		status IncidentStatus
		want   bool
	}{
		{IncidentOpen, true},
		{IncidentAnalyzing, true},
		{IncidentResolved, false},
		{IncidentClosed, false},
	} {
		inc := Incident{Status: tc.status}
		if got := inc.IsOpen(); got != tc.want {
			t.Errorf("IsOpen() with status %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}
