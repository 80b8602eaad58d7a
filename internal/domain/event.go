package domain

import "fmt"

// EventKind is the subscription key for domain events.
type EventKind string

const (
	EventDoor             EventKind = "door"
	EventSecurityProtocol EventKind = "security_protocol"
	EventLog              EventKind = "log"
	EventError            EventKind = "error"
	EventDisconnected     EventKind = "disconnected"
	EventAvailability     EventKind = "availability"
)

// KindOfSwitch returns the event kind published for sw.
func KindOfSwitch(sw Switch) EventKind { return EventKind(sw) }

// KindOfAlarm returns the event kind published for a.
func KindOfAlarm(a Alarm) EventKind { return EventKind(a) }

func kindOfMeasurement(m Measurement) EventKind { return EventKind(m) }

func kindOfIdentity(f IdentityField) EventKind { return EventKind(f) }

// Event is a state change or signal emitted by the device client.
// The set of implementations is closed to this package.
type Event interface {
	Kind() EventKind
	event()
}

type DoorEvent struct {
	Closed   bool
	Position float64
}

func (DoorEvent) Kind() EventKind { return EventDoor }
func (DoorEvent) event()          {}

type SwitchEvent struct {
	Switch Switch
	On     bool
}

func (e SwitchEvent) Kind() EventKind { return KindOfSwitch(e.Switch) }
func (SwitchEvent) event()            {}

type AlarmEvent struct {
	Alarm  Alarm
	Active bool
}

func (e AlarmEvent) Kind() EventKind { return KindOfAlarm(e.Alarm) }
func (AlarmEvent) event()            {}

// MeasurementEvent carries a numeric reading. Known is false when the
// firmware reports the value as unavailable (e.g. openings "NA").
type MeasurementEvent struct {
	Measurement Measurement
	Value       float64
	Known       bool
}

func (e MeasurementEvent) Kind() EventKind { return kindOfMeasurement(e.Measurement) }
func (MeasurementEvent) event()            {}

type SecurityProtocolEvent struct {
	Protocol SecurityProtocol
}

func (SecurityProtocolEvent) Kind() EventKind { return EventSecurityProtocol }
func (SecurityProtocolEvent) event()          {}

type IdentityEvent struct {
	Field IdentityField
	Value string
}

func (e IdentityEvent) Kind() EventKind { return kindOfIdentity(e.Field) }
func (IdentityEvent) event()            {}

// LogEvent reports connection progress. Attempt and Ceiling are set for
// retry notices.
type LogEvent struct {
	Message string
	Attempt int
	Ceiling int
}

func (LogEvent) Kind() EventKind { return EventLog }
func (LogEvent) event()          {}

// NewRetryLogEvent builds the notice published for a failed connect attempt.
func NewRetryLogEvent(attempt, ceiling int) LogEvent {
	return LogEvent{
		Message: fmt.Sprintf("failed to connect to device, retrying %d of %d", attempt, ceiling),
		Attempt: attempt,
		Ceiling: ceiling,
	}
}

type ErrorEvent struct {
	Err error
}

func (ErrorEvent) Kind() EventKind { return EventError }
func (ErrorEvent) event()          {}

// DisconnectedEvent is published when the stream closes without a
// Disconnect call.
type DisconnectedEvent struct {
	Err error
}

func (DisconnectedEvent) Kind() EventKind { return EventDisconnected }
func (DisconnectedEvent) event()          {}

// AvailabilityEvent is published by the bridge when the device becomes
// reachable or unreachable. Reason is empty while available.
type AvailabilityEvent struct {
	Available bool
	Reason    string
}

func (AvailabilityEvent) Kind() EventKind { return EventAvailability }
func (AvailabilityEvent) event()          {}
