package konnected

import (
	"encoding/json"
	"fmt"

	"gdo-bridge/internal/domain"
)

// extractor converts a decoded payload into its domain event.
type extractor func(p *Payload) (domain.Event, error)

// component is one entry of the object id table. The firmware reports
// objects either as "<object>_<platform>" or, on newer builds, as
// "<platform>-<object>"; both spellings map to the same extractor.
type component struct {
	platform string
	object   string
	extract  extractor
}

var components = []component{
	{"cover", "garage_door", decodeDoor},
	{"light", "garage_light", decodeOnOffState(domain.SwitchLight)},
	{"lock", "lock", decodeLock},
	{"binary_sensor", "motion", decodeAlarm(domain.AlarmMotionDetected)},
	{"binary_sensor", "synced", decodeAlarm(domain.AlarmSynced)},
	{"binary_sensor", "obstruction", decodeAlarm(domain.AlarmObstructionDetected)},
	{"binary_sensor", "motor", decodeAlarm(domain.AlarmMotor)},
	{"binary_sensor", "wall_button", decodeAlarm(domain.AlarmWallButtonPressed)},
	{"sensor", "garage_openings", decodeMeasurement(domain.MeasurementOpenings)},
	{"select", "security__protocol", decodeSecurityProtocol},
	{"switch", "learn", decodeSwitchValue(domain.SwitchLearn)},
	{"sensor", "wifi_signal_rssi", decodeMeasurement(domain.MeasurementWifiStrength)},
	{"sensor", "wifi_signal__", decodeMeasurement(domain.MeasurementWifiPercent)},
	{"sensor", "uptime", decodeMeasurement(domain.MeasurementUptime)},
	{"text_sensor", "device_id", decodeDeviceID},
	{"text_sensor", "ip_address", decodeIdentityValue(domain.IdentityIPAddress)},
	{"switch", "toggle_only", decodeSwitchValue(domain.SwitchToggleOnly)},
}

var extractors = buildExtractors(components)

func buildExtractors(cs []component) map[string]extractor {
	m := make(map[string]extractor, len(cs)*2)
	for _, c := range cs {
		m[c.object+"_"+c.platform] = c.extract
		m[c.platform+"-"+c.object] = c.extract
	}
	return m
}

// IsKnownObject reports whether id is decoded into an event.
func IsKnownObject(id string) bool {
	_, ok := extractors[id]
	return ok
}

// DecodeState converts one `state` push payload into a domain event.
// It returns (nil, nil) for object ids the client does not model and an
// error wrapping ErrMalformedMessage when the payload cannot be decoded.
func DecodeState(data []byte) (domain.Event, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	extract, ok := extractors[p.ID]
	if !ok {
		return nil, nil
	}
	return extract(&p)
}

func decodeDoor(p *Payload) (domain.Event, error) {
	return domain.DoorEvent{
		Closed:   p.State == domain.DoorStateClosed,
		Position: p.PositionValue(),
	}, nil
}

func decodeLock(p *Payload) (domain.Event, error) {
	return domain.SwitchEvent{Switch: domain.SwitchRemoteLock, On: p.State == domain.LockStateLocked}, nil
}

func decodeOnOffState(sw domain.Switch) extractor {
	return func(p *Payload) (domain.Event, error) {
		return domain.SwitchEvent{Switch: sw, On: p.State == domain.StateOn}, nil
	}
}

func decodeSwitchValue(sw domain.Switch) extractor {
	return func(p *Payload) (domain.Event, error) {
		on, err := p.BoolValue()
		if err != nil {
			return nil, err
		}
		return domain.SwitchEvent{Switch: sw, On: on}, nil
	}
}

func decodeAlarm(a domain.Alarm) extractor {
	return func(p *Payload) (domain.Event, error) {
		active, err := p.BoolValue()
		if err != nil {
			return nil, err
		}
		return domain.AlarmEvent{Alarm: a, Active: active}, nil
	}
}

func decodeMeasurement(m domain.Measurement) extractor {
	return func(p *Payload) (domain.Event, error) {
		v, known, err := p.NumberValue()
		if err != nil {
			return nil, err
		}
		return domain.MeasurementEvent{Measurement: m, Value: v, Known: known}, nil
	}
}

func decodeSecurityProtocol(p *Payload) (domain.Event, error) {
	v, err := p.StringValue()
	if err != nil {
		return nil, err
	}
	return domain.SecurityProtocolEvent{Protocol: domain.SecurityProtocol(v)}, nil
}

// The device id sensor is reported through its state string.
func decodeDeviceID(p *Payload) (domain.Event, error) {
	return domain.IdentityEvent{Field: domain.IdentityDeviceID, Value: p.State}, nil
}

func decodeIdentityValue(f domain.IdentityField) extractor {
	return func(p *Payload) (domain.Event, error) {
		v, err := p.StringValue()
		if err != nil {
			return nil, err
		}
		return domain.IdentityEvent{Field: f, Value: v}, nil
	}
}
