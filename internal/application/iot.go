package application

import (
	"context"
	"time"

	"gdo-bridge/internal/domain"
)

// DoorController issues commands to the opener.
type DoorController interface {
	OpenGarageDoor(ctx context.Context) error
	CloseGarageDoor(ctx context.Context) error
	StopGarageDoor(ctx context.Context) error
	ToggleGarageDoor(ctx context.Context) error
	SetGarageDoorPosition(ctx context.Context, position float64) error
	ToggleGarageLight(ctx context.Context) error
	ToggleLearnMode(ctx context.Context) error
	SetSwitchState(ctx context.Context, sw domain.Switch, on bool) error
	PressButton(ctx context.Context, button domain.Button) error
	SetSecurityProtocol(ctx context.Context, protocol domain.SecurityProtocol) error
}

// StatusReader queries individual components on demand.
type StatusReader interface {
	IsGarageDoorOpen(ctx context.Context) (bool, error)
	GarageDoorPosition(ctx context.Context) (float64, error)
	IsGarageLightOn(ctx context.Context) (bool, error)
	IsRemoteLocked(ctx context.Context) (bool, error)
	IsToggleOnlyEnabled(ctx context.Context) (bool, error)
	IsObstructionDetected(ctx context.Context) (bool, error)
	IsSynced(ctx context.Context) (bool, error)
	GarageOpenings(ctx context.Context) (int, bool, error)
	SecurityProtocol(ctx context.Context) (domain.SecurityProtocol, error)
	WifiSignalRSSI(ctx context.Context) (float64, bool, error)
	Uptime(ctx context.Context) (time.Duration, error)
	DeviceID(ctx context.Context) (string, error)
}

// GarageDevice is the connection to one opener.
type GarageDevice interface {
	DoorController
	StatusReader

	Open(ctx context.Context) error
	Disconnect()
	SetCredentials(username, password string)
	SetAddress(address string, port int)
	SubscribeAll(h func(domain.Event))
}

// VerifyFunc checks a device without connecting to it.
type VerifyFunc func(ctx context.Context, address string, port int, username, password string) (domain.VerificationResult, error)

// EventSink receives every event the bridge handles. Implementations must
// not block.
type EventSink interface {
	HandleEvent(ev domain.Event)
}
