package domain_test

import (
	"errors"
	"testing"
	"time"

	"gdo-bridge/internal/domain"
)

func TestGarageState_ApplyReportsChanges(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := domain.NewGarageState()

	steps := []struct {
		name string
		ev   domain.Event
		want bool
	}{
		{"door first report", domain.DoorEvent{Closed: true}, true},
		{"door repeated", domain.DoorEvent{Closed: true}, false},
		{"door moved", domain.DoorEvent{Closed: false, Position: 0.5}, true},
		{"light first report off", domain.SwitchEvent{Switch: domain.SwitchLight, On: false}, true},
		{"light repeated", domain.SwitchEvent{Switch: domain.SwitchLight, On: false}, false},
		{"alarm raised", domain.AlarmEvent{Alarm: domain.AlarmMotor, Active: true}, true},
		{"alarm repeated", domain.AlarmEvent{Alarm: domain.AlarmMotor, Active: true}, false},
		{"openings unknown before any value", domain.MeasurementEvent{Measurement: domain.MeasurementOpenings}, false},
		{"openings known", domain.MeasurementEvent{Measurement: domain.MeasurementOpenings, Value: 3, Known: true}, true},
		{"openings repeated", domain.MeasurementEvent{Measurement: domain.MeasurementOpenings, Value: 3, Known: true}, false},
		{"openings back to unknown", domain.MeasurementEvent{Measurement: domain.MeasurementOpenings}, true},
		{"protocol", domain.SecurityProtocolEvent{Protocol: domain.SecurityProtocolSecurity2}, true},
		{"protocol repeated", domain.SecurityProtocolEvent{Protocol: domain.SecurityProtocolSecurity2}, false},
		{"device id", domain.IdentityEvent{Field: domain.IdentityDeviceID, Value: "a1b2"}, true},
		{"device id repeated", domain.IdentityEvent{Field: domain.IdentityDeviceID, Value: "a1b2"}, false},
		{"available", domain.AvailabilityEvent{Available: true}, true},
		{"available repeated", domain.AvailabilityEvent{Available: true}, false},
		{"error", domain.ErrorEvent{Err: errors.New("stream dropped")}, true},
		{"log carries no state", domain.LogEvent{Message: "hello"}, false},
	}

	for i, step := range steps {
		now := t0.Add(time.Duration(i) * time.Second)
		before := s.UpdatedAt

		got := s.Apply(step.ev, now)
		if got != step.want {
			t.Errorf("%s: got %v, want %v", step.name, got, step.want)
		}
		if step.want && !s.UpdatedAt.Equal(now) {
			t.Errorf("%s: updated at got %v, want %v", step.name, s.UpdatedAt, now)
		}
		if !step.want && !s.UpdatedAt.Equal(before) {
			t.Errorf("%s: updated at moved without a change", step.name)
		}
	}
}
