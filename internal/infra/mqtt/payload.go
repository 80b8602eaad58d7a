package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gdo-bridge/internal/domain"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

type statePayload struct {
	Closed    *bool    `json:"closed,omitempty"`
	Position  *float64 `json:"position,omitempty"`
	On        *bool    `json:"on,omitempty"`
	Active    *bool    `json:"active,omitempty"`
	Value     any      `json:"value,omitempty"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// encodeEvent renders ev for its state topic. retained is set for events
// describing current state. ok is false for events not published on a
// state topic.
func encodeEvent(ev domain.Event, now time.Time) (payload []byte, retained, ok bool, err error) {
	p := statePayload{Timestamp: now.UTC().Format(time.RFC3339)}
	retained = true

	switch e := ev.(type) {
	case domain.DoorEvent:
		p.Closed = &e.Closed
		p.Position = &e.Position
	case domain.SwitchEvent:
		p.On = &e.On
	case domain.AlarmEvent:
		p.Active = &e.Active
	case domain.MeasurementEvent:
		if e.Known {
			p.Value = e.Value
		}
	case domain.SecurityProtocolEvent:
		p.Value = string(e.Protocol)
	case domain.IdentityEvent:
		p.Value = e.Value
	case domain.LogEvent:
		p.Message = e.Message
		retained = false
	case domain.ErrorEvent:
		p.Error = errString(e.Err)
		retained = false
	case domain.DisconnectedEvent:
		p.Error = errString(e.Err)
		retained = false
	default:
		return nil, false, false, nil
	}

	payload, err = json.Marshal(p)
	if err != nil {
		return nil, false, false, fmt.Errorf("encoding %s event: %w", ev.Kind(), err)
	}
	return payload, retained, true, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// parseCommand turns a message on a command topic into a domain command.
//
//	command/door                   open | close | stop | toggle | <position>
//	command/switch/<name>          ON | OFF | TOGGLE
//	command/button/<name>          any payload
//	command/security_protocol      <protocol>
func parseCommand(target []string, payload []byte) (domain.Command, error) {
	body := strings.TrimSpace(string(payload))
	cmd := domain.Command{Source: "mqtt"}

	switch {
	case len(target) == 1 && target[0] == string(domain.TargetTypeDoor):
		cmd.TargetType = domain.TargetTypeDoor
		switch domain.Action(strings.ToLower(body)) {
		case domain.ActionOpen:
			cmd.Action = domain.ActionOpen
		case domain.ActionClose:
			cmd.Action = domain.ActionClose
		case domain.ActionStop:
			cmd.Action = domain.ActionStop
		case domain.ActionToggle:
			cmd.Action = domain.ActionToggle
		default:
			pos, err := strconv.ParseFloat(body, 64)
			if err != nil || math.IsInf(pos, 0) || math.IsNaN(pos) {
				return cmd, fmt.Errorf("%w: door payload %q", ErrInvalidCommand, body)
			}
			cmd.Action = domain.ActionSetPosition
			cmd.Position = pos
		}

	case len(target) == 2 && target[0] == string(domain.TargetTypeSwitch):
		cmd.TargetType = domain.TargetTypeSwitch
		cmd.Switch = domain.Switch("switch-" + target[1])
		switch strings.ToUpper(body) {
		case domain.StateOn, "TRUE", "1":
			cmd.Action = domain.ActionTurnOn
		case domain.StateOff, "FALSE", "0":
			cmd.Action = domain.ActionTurnOff
		case "TOGGLE":
			cmd.Action = domain.ActionToggle
		default:
			return cmd, fmt.Errorf("%w: switch payload %q", ErrInvalidCommand, body)
		}

	case len(target) == 2 && target[0] == string(domain.TargetTypeButton):
		cmd.TargetType = domain.TargetTypeButton
		cmd.Action = domain.ActionPress
		cmd.Button = domain.Button("button-" + target[1])

	case len(target) == 1 && target[0] == string(domain.TargetTypeProtocol):
		cmd.TargetType = domain.TargetTypeProtocol
		cmd.Action = domain.ActionSetProtocol
		cmd.Protocol = domain.SecurityProtocol(body)

	default:
		return cmd, fmt.Errorf("%w: topic %q", ErrInvalidCommand, strings.Join(target, "/"))
	}

	return cmd, nil
}
