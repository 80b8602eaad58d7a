package konnected

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gdo-bridge/internal/domain"
)

// Payload is the JSON object the firmware returns for a component, both on
// GET and inside `state` push frames. Value is kept raw because its type
// depends on the component.
type Payload struct {
	ID               string          `json:"id"`
	State            string          `json:"state"`
	Value            json.RawMessage `json:"value,omitempty"`
	Position         *float64        `json:"position,omitempty"`
	CurrentOperation string          `json:"current_operation,omitempty"`
}

func (p *Payload) hasValue() bool {
	return len(p.Value) > 0 && !bytes.Equal(p.Value, []byte("null"))
}

// BoolValue returns the boolean `value` field. Payloads without one fall
// back to comparing the state string against ON.
func (p *Payload) BoolValue() (bool, error) {
	if !p.hasValue() {
		return p.State == domain.StateOn, nil
	}
	var b bool
	if err := json.Unmarshal(p.Value, &b); err != nil {
		return false, fmt.Errorf("%w: %s value: %w", ErrMalformedMessage, p.ID, err)
	}
	return b, nil
}

// NumberValue returns the numeric `value` field. known is false when the
// firmware reports null or a non-numeric placeholder such as "NA".
func (p *Payload) NumberValue() (value float64, known bool, err error) {
	if !p.hasValue() {
		return 0, false, nil
	}
	if err := json.Unmarshal(p.Value, &value); err == nil {
		return value, true, nil
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err != nil {
		return 0, false, fmt.Errorf("%w: %s value: %w", ErrMalformedMessage, p.ID, err)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true, nil
	}
	return 0, false, nil
}

// StringValue returns the string `value` field, or the state string when
// no value is present.
func (p *Payload) StringValue() (string, error) {
	if !p.hasValue() {
		return p.State, nil
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err != nil {
		return "", fmt.Errorf("%w: %s value: %w", ErrMalformedMessage, p.ID, err)
	}
	return s, nil
}

// PositionValue returns the cover position, zero when absent.
func (p *Payload) PositionValue() float64 {
	if p.Position == nil {
		return 0
	}
	return *p.Position
}
