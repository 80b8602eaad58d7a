package konnected

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gdo-bridge/internal/domain"
)

// readPayload fetches a status endpoint. A 401 yields ErrUnauthorized
// rather than a zero payload.
func (c *Client) readPayload(ctx context.Context, endpoint Endpoint) (*Payload, error) {
	var p Payload
	ok, err := c.get(ctx, endpoint, &p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", endpoint, err)
	}
	if !ok {
		return nil, fmt.Errorf("reading %s: no data returned: %w", endpoint, ErrUnauthorized)
	}
	return &p, nil
}

func (c *Client) stateIs(ctx context.Context, endpoint Endpoint, want string) (bool, error) {
	p, err := c.readPayload(ctx, endpoint)
	if err != nil {
		return false, err
	}
	return p.State == want, nil
}

func (c *Client) number(ctx context.Context, endpoint Endpoint) (float64, bool, error) {
	p, err := c.readPayload(ctx, endpoint)
	if err != nil {
		return 0, false, err
	}
	v, known, err := p.NumberValue()
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", endpoint, err)
	}
	return v, known, nil
}

func (c *Client) text(ctx context.Context, endpoint Endpoint) (string, error) {
	p, err := c.readPayload(ctx, endpoint)
	if err != nil {
		return "", err
	}
	v, err := p.StringValue()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", endpoint, err)
	}
	return v, nil
}

func (c *Client) action(ctx context.Context, endpoint Endpoint, params url.Values) error {
	ok, err := c.post(ctx, endpoint, params)
	if err != nil {
		return fmt.Errorf("posting %s: %w", endpoint, err)
	}
	if !ok {
		return fmt.Errorf("posting %s: %w", endpoint, ErrUnauthorized)
	}
	return nil
}

func (c *Client) IsGarageDoorOpen(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, GarageDoor, domain.DoorStateOpen)
}

// GarageDoorPosition returns the door's current position as reported by
// the cover endpoint.
func (c *Client) GarageDoorPosition(ctx context.Context) (float64, error) {
	p, err := c.readPayload(ctx, GarageDoor)
	if err != nil {
		return 0, err
	}
	return p.PositionValue(), nil
}

func (c *Client) OpenGarageDoor(ctx context.Context) error {
	return c.action(ctx, GarageDoorOpen, nil)
}

func (c *Client) CloseGarageDoor(ctx context.Context) error {
	return c.action(ctx, GarageDoorClose, nil)
}

func (c *Client) StopGarageDoor(ctx context.Context) error {
	return c.action(ctx, GarageDoorStop, nil)
}

func (c *Client) ToggleGarageDoor(ctx context.Context) error {
	return c.action(ctx, GarageDoorToggle, nil)
}

func (c *Client) SetGarageDoorPosition(ctx context.Context, position float64) error {
	params := url.Values{}
	params.Set(paramPosition, strconv.FormatFloat(position, 'f', -1, 64))
	return c.action(ctx, GarageDoorSet, params)
}

func (c *Client) IsGarageLightOn(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, GarageLight, domain.StateOn)
}

func (c *Client) TurnOnGarageLight(ctx context.Context) error {
	return c.action(ctx, GarageLightTurnOn, nil)
}

func (c *Client) TurnOffGarageLight(ctx context.Context) error {
	return c.action(ctx, GarageLightTurnOff, nil)
}

func (c *Client) ToggleGarageLight(ctx context.Context) error {
	return c.action(ctx, GarageLightToggle, nil)
}

func (c *Client) IsRemoteLocked(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, Lock, domain.LockStateLocked)
}

func (c *Client) LockRemote(ctx context.Context) error {
	return c.action(ctx, LockLock, nil)
}

func (c *Client) UnlockRemote(ctx context.Context) error {
	return c.action(ctx, LockUnlock, nil)
}

func (c *Client) IsMotionDetected(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, MotionSensor, domain.StateOn)
}

func (c *Client) IsSynced(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, RollingCodeSynced, domain.StateOn)
}

func (c *Client) IsObstructionDetected(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, Obstruction, domain.StateOn)
}

func (c *Client) IsMotorRunning(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, MotorRunning, domain.StateOn)
}

func (c *Client) IsWallButtonPressed(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, WallButtonPressed, domain.StateOn)
}

func (c *Client) IsToggleOnlyEnabled(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, ToggleOnly, domain.StateOn)
}

// GarageOpenings returns the lifetime opening count. known is false while
// the opener has not reported one.
func (c *Client) GarageOpenings(ctx context.Context) (count int, known bool, err error) {
	v, known, err := c.number(ctx, GarageOpenings)
	if err != nil {
		return 0, false, err
	}
	return int(v), known, nil
}

func (c *Client) SecurityProtocol(ctx context.Context) (domain.SecurityProtocol, error) {
	v, err := c.text(ctx, SecurityProtocolSelect)
	if err != nil {
		return "", err
	}
	return domain.SecurityProtocol(v), nil
}

func (c *Client) SetSecurityProtocol(ctx context.Context, protocol domain.SecurityProtocol) error {
	params := url.Values{}
	params.Set(paramOption, string(protocol))
	return c.action(ctx, SecurityProtocolSet, params)
}

func (c *Client) IsLearnModeEnabled(ctx context.Context) (bool, error) {
	return c.stateIs(ctx, Learn, domain.StateOn)
}

func (c *Client) TurnOnLearnMode(ctx context.Context) error {
	return c.action(ctx, LearnOn, nil)
}

func (c *Client) TurnOffLearnMode(ctx context.Context) error {
	return c.action(ctx, LearnOff, nil)
}

func (c *Client) ToggleLearnMode(ctx context.Context) error {
	return c.action(ctx, LearnToggle, nil)
}

// WifiSignalRSSI returns the signal strength in dBm. known is false while
// the opener reports NA.
func (c *Client) WifiSignalRSSI(ctx context.Context) (rssi float64, known bool, err error) {
	return c.number(ctx, WifiSignalRSSI)
}

// WifiSignalPercent returns the signal strength as 0-100.
func (c *Client) WifiSignalPercent(ctx context.Context) (percent float64, known bool, err error) {
	return c.number(ctx, WifiSignalPercent)
}

func (c *Client) Uptime(ctx context.Context) (time.Duration, error) {
	v, _, err := c.number(ctx, Uptime)
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (c *Client) DeviceID(ctx context.Context) (string, error) {
	return c.text(ctx, DeviceID)
}

func (c *Client) IPAddress(ctx context.Context) (string, error) {
	return c.text(ctx, IPAddress)
}

// PressButton posts to the button's press endpoint. An unmapped button is
// reported as an error event and no request is made.
func (c *Client) PressButton(ctx context.Context, button domain.Button) error {
	endpoint, ok := ButtonMappings[button]
	if !ok {
		c.bus.Publish(domain.ErrorEvent{
			Err: fmt.Errorf("%w: button mapping not found for %q", ErrUnmappedOperation, button),
		})
		return nil
	}
	return c.action(ctx, endpoint, nil)
}

// SetSwitchState posts to the switch's on or off endpoint. An unmapped
// switch is reported as an error event and no request is made.
func (c *Client) SetSwitchState(ctx context.Context, sw domain.Switch, on bool) error {
	endpoints, ok := SwitchMappings[sw]
	if !ok {
		c.bus.Publish(domain.ErrorEvent{
			Err: fmt.Errorf("%w: switch mapping not found for %q", ErrUnmappedOperation, sw),
		})
		return nil
	}

	endpoint := endpoints.Off
	if on {
		endpoint = endpoints.On
	}
	return c.action(ctx, endpoint, nil)
}
