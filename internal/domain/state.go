package domain

import "time"

// GarageState is the last known state of one opener, assembled from
// events. It lives in memory only.
type GarageState struct {
	DeviceID         string                  `json:"device_id,omitempty"`
	IPAddress        string                  `json:"ip_address,omitempty"`
	Available        bool                    `json:"available"`
	Reason           string                  `json:"reason,omitempty"`
	DoorClosed       bool                    `json:"door_closed"`
	DoorPosition     float64                 `json:"door_position"`
	SecurityProtocol SecurityProtocol        `json:"security_protocol,omitempty"`
	Switches         map[Switch]bool         `json:"switches"`
	Alarms           map[Alarm]bool          `json:"alarms"`
	Measurements     map[Measurement]float64 `json:"measurements"`
	LastError        string                  `json:"last_error,omitempty"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func NewGarageState() GarageState {
	return GarageState{
		Switches:     make(map[Switch]bool),
		Alarms:       make(map[Alarm]bool),
		Measurements: make(map[Measurement]float64),
	}
}

// Clone returns a deep copy.
func (s GarageState) Clone() GarageState {
	out := s
	out.Switches = make(map[Switch]bool, len(s.Switches))
	for k, v := range s.Switches {
		out.Switches[k] = v
	}
	out.Alarms = make(map[Alarm]bool, len(s.Alarms))
	for k, v := range s.Alarms {
		out.Alarms[k] = v
	}
	out.Measurements = make(map[Measurement]float64, len(s.Measurements))
	for k, v := range s.Measurements {
		out.Measurements[k] = v
	}
	return out
}

// Apply folds ev into the state and reports whether anything changed.
// UpdatedAt moves only on a change. Events that carry no state are ignored.
func (s *GarageState) Apply(ev Event, now time.Time) bool {
	var changed bool

	switch e := ev.(type) {
	case DoorEvent:
		changed = s.DoorClosed != e.Closed || s.DoorPosition != e.Position
		s.DoorClosed = e.Closed
		s.DoorPosition = e.Position
	case SwitchEvent:
		changed = setBool(s.Switches, e.Switch, e.On)
	case AlarmEvent:
		changed = setBool(s.Alarms, e.Alarm, e.Active)
	case MeasurementEvent:
		prev, had := s.Measurements[e.Measurement]
		if !e.Known {
			delete(s.Measurements, e.Measurement)
			changed = had
			break
		}
		changed = !had || prev != e.Value
		s.Measurements[e.Measurement] = e.Value
	case SecurityProtocolEvent:
		changed = s.SecurityProtocol != e.Protocol
		s.SecurityProtocol = e.Protocol
	case IdentityEvent:
		switch e.Field {
		case IdentityDeviceID:
			changed = s.DeviceID != e.Value
			s.DeviceID = e.Value
		case IdentityIPAddress:
			changed = s.IPAddress != e.Value
			s.IPAddress = e.Value
		}
	case AvailabilityEvent:
		changed = s.Available != e.Available || s.Reason != e.Reason
		s.Available = e.Available
		s.Reason = e.Reason
	case ErrorEvent:
		if e.Err != nil {
			changed = s.LastError != e.Err.Error()
			s.LastError = e.Err.Error()
		}
	}

	if changed {
		s.UpdatedAt = now
	}
	return changed
}

func setBool[K comparable](m map[K]bool, k K, v bool) bool {
	prev, had := m[k]
	m[k] = v
	return !had || prev != v
}
