package homeassistant

import (
	"math"
	"strconv"
	"strings"

	"gdo-bridge/internal/domain"
)

// entityStateFor maps a device event to the Home Assistant entity that
// mirrors it. ok is false for events with no entity.
func entityStateFor(ev domain.Event, device string) (s EntityState, ok bool) {
	switch e := ev.(type) {
	case domain.DoorEvent:
		state := "open"
		if e.Closed {
			state = "closed"
		}
		return EntityState{
			EntityID: "cover." + device + "_door",
			State:    state,
			Attributes: map[string]any{
				"device_class":     "garage",
				"current_position": percent(e.Position),
			},
		}, true

	case domain.SwitchEvent:
		switch e.Switch {
		case domain.SwitchLight:
			return EntityState{EntityID: "light." + device + "_light", State: onOff(e.On)}, true
		case domain.SwitchRemoteLock:
			state := "unlocked"
			if e.On {
				state = "locked"
			}
			return EntityState{EntityID: "lock." + device + "_remote_lock", State: state}, true
		default:
			return EntityState{EntityID: "switch." + device + "_" + suffix(string(e.Switch)), State: onOff(e.On)}, true
		}

	case domain.AlarmEvent:
		return EntityState{
			EntityID: "binary_sensor." + device + "_" + suffix(string(e.Alarm)),
			State:    onOff(e.Active),
		}, true

	case domain.MeasurementEvent:
		s := EntityState{EntityID: "sensor." + device + "_" + string(e.Measurement), State: "unknown"}
		if e.Known {
			s.State = strconv.FormatFloat(e.Value, 'f', -1, 64)
		}
		if unit, ok := measurementUnits[e.Measurement]; ok {
			s.Attributes = map[string]any{"unit_of_measurement": unit}
		}
		return s, true

	case domain.SecurityProtocolEvent:
		return EntityState{EntityID: "select." + device + "_security_protocol", State: string(e.Protocol)}, true

	case domain.AvailabilityEvent:
		s := EntityState{
			EntityID:   "binary_sensor." + device + "_connectivity",
			State:      onOff(e.Available),
			Attributes: map[string]any{"device_class": "connectivity"},
		}
		if e.Reason != "" {
			s.Attributes["reason"] = e.Reason
		}
		return s, true
	}

	return EntityState{}, false
}

var measurementUnits = map[domain.Measurement]string{
	domain.MeasurementWifiStrength: "dBm",
	domain.MeasurementWifiPercent:  "%",
	domain.MeasurementUptime:       "s",
}

// percent converts a 0..1 door position to the 0..100 scale. Firmware that
// already reports percent is passed through.
func percent(position float64) int {
	if position > 1 {
		return int(math.Round(position))
	}
	return int(math.Round(position * 100))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// suffix drops the component prefix, "alarm-motor" becomes "motor".
func suffix(kind string) string {
	_, name, found := strings.Cut(kind, "-")
	if !found {
		return kind
	}
	return name
}
