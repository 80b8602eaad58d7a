package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gdo-bridge/internal/domain"
)

// Reasons reported while the device is unavailable.
const (
	ReasonSettingsUpdated = "settings updated, reconnecting"
	ReasonAddressChanged  = "address changed, reconnecting"
	ReasonUnauthorised    = "unable to connect: check the username and password"
	ReasonStopped         = "bridge stopped"
)

const notifyTimeout = 10 * time.Second

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrNoVerifier     = errors.New("connection verification not configured")
)

var alarmMessages = map[domain.Alarm]string{
	domain.AlarmMotor:               "Motor running",
	domain.AlarmMotionDetected:      "Motion detected",
	domain.AlarmSynced:              "Opener lost sync with the controller",
	domain.AlarmObstructionDetected: "Obstruction detected",
	domain.AlarmWallButtonPressed:   "Wall button pressed",
}

// alarmRaised reports whether an alarm reading is the alarming one. The
// synced sensor alarms when it reads false.
func alarmRaised(a domain.Alarm, active bool) bool {
	if a == domain.AlarmSynced {
		return !active
	}
	return active
}

// Garage keeps one opener connected and mirrors its state to the bridge
// surfaces.
type Garage struct {
	name     string
	device   GarageDevice
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	verify            VerifyFunc
	notifyAlarms      map[domain.Alarm]bool
	notifyUnavailable bool

	// lifecycle serializes Start, Update* and Stop.
	lifecycle sync.Mutex

	mu    sync.RWMutex
	state domain.GarageState
	sinks []EventSink
}

type GarageOption func(*Garage)

func WithVerifier(v VerifyFunc) GarageOption {
	return func(g *Garage) { g.verify = v }
}

// WithAlarmNotifications sends a notification when one of alarms is raised.
func WithAlarmNotifications(alarms ...domain.Alarm) GarageOption {
	return func(g *Garage) {
		for _, a := range alarms {
			g.notifyAlarms[a] = true
		}
	}
}

// WithUnavailableNotification sends a notification when the device goes
// from available to unavailable.
func WithUnavailableNotification() GarageOption {
	return func(g *Garage) { g.notifyUnavailable = true }
}

func WithSinks(sinks ...EventSink) GarageOption {
	return func(g *Garage) { g.sinks = append(g.sinks, sinks...) }
}

func NewGarage(name string, device GarageDevice, notifier Notifier, logger *slog.Logger, opts ...GarageOption) *Garage {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}

	g := &Garage{
		name:         name,
		device:       device,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		notifyAlarms: make(map[domain.Alarm]bool),
		state:        domain.NewGarageState(),
	}
	for _, opt := range opts {
		opt(g)
	}

	device.SubscribeAll(g.handle)
	return g
}

func (g *Garage) Name() string {
	return g.name
}

// AddSink registers s for every subsequent event.
func (g *Garage) AddSink(s EventSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, s)
}

// Snapshot returns a copy of the last known state.
func (g *Garage) Snapshot() domain.GarageState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Clone()
}

// Start connects to the device. A failure leaves the device marked
// unavailable with the reason.
func (g *Garage) Start(ctx context.Context) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()
	return g.connect(ctx)
}

// UpdateCredentials reconnects with new credentials.
func (g *Garage) UpdateCredentials(ctx context.Context, username, password string) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.device.Disconnect()
	g.setAvailability(false, ReasonSettingsUpdated)
	g.device.SetCredentials(username, password)
	return g.connect(ctx)
}

// UpdateAddress reconnects to a new address, e.g. after rediscovery.
func (g *Garage) UpdateAddress(ctx context.Context, address string, port int) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.device.Disconnect()
	g.setAvailability(false, ReasonAddressChanged)
	g.device.SetAddress(address, port)
	return g.connect(ctx)
}

// Stop closes the connection and marks the device unavailable.
func (g *Garage) Stop() {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.device.Disconnect()
	g.setAvailability(false, ReasonStopped)
}

func (g *Garage) connect(ctx context.Context) error {
	g.logger.Info("connecting to device", "name", g.name)

	if err := g.device.Open(ctx); err != nil {
		g.setAvailability(false, unavailableReason(err))
		return fmt.Errorf("connecting to %s: %w", g.name, err)
	}

	g.logger.Info("device connected", "name", g.name)
	g.setAvailability(true, "")
	return nil
}

func unavailableReason(err error) string {
	if errors.Is(err, domain.ErrUnauthorized) {
		return ReasonUnauthorised
	}
	return err.Error()
}

func (g *Garage) setAvailability(available bool, reason string) {
	g.dispatch(domain.AvailabilityEvent{Available: available, Reason: reason})
}

// handle receives events from the device client.
func (g *Garage) handle(ev domain.Event) {
	switch e := ev.(type) {
	case domain.LogEvent:
		g.logger.Info(e.Message, "name", g.name)
	case domain.ErrorEvent:
		g.logger.Warn("device error", "name", g.name, "error", e.Err)
	case domain.DisconnectedEvent:
		g.logger.Warn("device disconnected", "name", g.name, "error", e.Err)
		g.dispatch(ev)
		g.setAvailability(false, unavailableReason(e.Err))
		return
	}
	g.dispatch(ev)
}

// dispatch folds ev into the snapshot, raises notifications and forwards
// ev to the sinks.
func (g *Garage) dispatch(ev domain.Event) {
	var message string

	g.mu.Lock()
	switch e := ev.(type) {
	case domain.AlarmEvent:
		prev, seen := g.state.Alarms[e.Alarm]
		wasRaised := seen && alarmRaised(e.Alarm, prev)
		if g.notifyAlarms[e.Alarm] && alarmRaised(e.Alarm, e.Active) && !wasRaised {
			message = alarmMessages[e.Alarm]
		}
	case domain.AvailabilityEvent:
		if g.notifyUnavailable && g.state.Available && !e.Available {
			message = "Unavailable: " + e.Reason
		}
	}
	g.state.Apply(ev, g.now())
	sinks := make([]EventSink, len(g.sinks))
	copy(sinks, g.sinks)
	g.mu.Unlock()

	if message != "" {
		go g.notify(message)
	}

	for _, s := range sinks {
		s.HandleEvent(ev)
	}
}

func (g *Garage) notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := g.notifier.Notify(ctx, g.name, message); err != nil {
		g.logger.Error("sending notification", "error", err)
	}
}

// Execute runs a command from one of the bridge surfaces.
func (g *Garage) Execute(ctx context.Context, cmd domain.Command) error {
	g.logger.Info("executing command",
		"id", cmd.ID,
		"action", cmd.Action,
		"target", cmd.TargetType,
		"source", cmd.Source,
	)

	if err := g.execute(ctx, cmd); err != nil {
		if !errors.Is(err, ErrInvalidCommand) {
			go g.notify(fmt.Sprintf("Command %s on %s failed: %v", cmd.Action, cmd.TargetType, err))
		}
		return fmt.Errorf("executing %s %s: %w", cmd.Action, cmd.TargetType, err)
	}
	return nil
}

func (g *Garage) execute(ctx context.Context, cmd domain.Command) error {
	switch cmd.TargetType {
	case domain.TargetTypeDoor:
		return g.executeDoor(ctx, cmd)

	case domain.TargetTypeSwitch:
		if _, ok := knownSwitches[cmd.Switch]; !ok {
			return fmt.Errorf("%w: unknown switch %q", ErrInvalidCommand, cmd.Switch)
		}
		switch cmd.Action {
		case domain.ActionTurnOn:
			return g.device.SetSwitchState(ctx, cmd.Switch, true)
		case domain.ActionTurnOff:
			return g.device.SetSwitchState(ctx, cmd.Switch, false)
		case domain.ActionToggle:
			return g.toggleSwitch(ctx, cmd.Switch)
		}

	case domain.TargetTypeButton:
		if cmd.Action != domain.ActionPress {
			break
		}
		if _, ok := knownButtons[cmd.Button]; !ok {
			return fmt.Errorf("%w: unknown button %q", ErrInvalidCommand, cmd.Button)
		}
		return g.device.PressButton(ctx, cmd.Button)

	case domain.TargetTypeProtocol:
		if cmd.Action != domain.ActionSetProtocol {
			break
		}
		if !cmd.Protocol.Valid() {
			return fmt.Errorf("%w: unknown security protocol %q", ErrInvalidCommand, cmd.Protocol)
		}
		return g.device.SetSecurityProtocol(ctx, cmd.Protocol)

	default:
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidCommand, cmd.TargetType)
	}

	return fmt.Errorf("%w: action %q not supported for %s", ErrInvalidCommand, cmd.Action, cmd.TargetType)
}

func (g *Garage) executeDoor(ctx context.Context, cmd domain.Command) error {
	switch cmd.Action {
	case domain.ActionOpen:
		return g.device.OpenGarageDoor(ctx)
	case domain.ActionClose:
		return g.device.CloseGarageDoor(ctx)
	case domain.ActionStop:
		return g.device.StopGarageDoor(ctx)
	case domain.ActionToggle:
		return g.device.ToggleGarageDoor(ctx)
	case domain.ActionSetPosition:
		if cmd.Position < 0 || math.IsNaN(cmd.Position) || math.IsInf(cmd.Position, 0) {
			return fmt.Errorf("%w: invalid position %v", ErrInvalidCommand, cmd.Position)
		}
		return g.device.SetGarageDoorPosition(ctx, cmd.Position)
	default:
		return fmt.Errorf("%w: action %q not supported for door", ErrInvalidCommand, cmd.Action)
	}
}

// toggleSwitch flips sw. The light and learn switches have a firmware
// toggle; the others are flipped from their current state, read from the
// device when no event has reported it yet.
func (g *Garage) toggleSwitch(ctx context.Context, sw domain.Switch) error {
	switch sw {
	case domain.SwitchLight:
		return g.device.ToggleGarageLight(ctx)
	case domain.SwitchLearn:
		return g.device.ToggleLearnMode(ctx)
	}

	on, known := g.Snapshot().Switches[sw]
	if !known {
		var err error
		if on, err = g.switchState(ctx, sw); err != nil {
			return fmt.Errorf("reading %s: %w", sw, err)
		}
	}
	return g.device.SetSwitchState(ctx, sw, !on)
}

func (g *Garage) switchState(ctx context.Context, sw domain.Switch) (bool, error) {
	if sw == domain.SwitchRemoteLock {
		return g.device.IsRemoteLocked(ctx)
	}
	return g.device.IsToggleOnlyEnabled(ctx)
}

var knownSwitches = map[domain.Switch]struct{}{
	domain.SwitchLight:      {},
	domain.SwitchRemoteLock: {},
	domain.SwitchToggleOnly: {},
	domain.SwitchLearn:      {},
}

var knownButtons = map[domain.Button]struct{}{
	domain.ButtonPlaySound:        {},
	domain.ButtonPreCloseWarning:  {},
	domain.ButtonReSync:           {},
	domain.ButtonResetDoorTimings: {},
	domain.ButtonRestart:          {},
	domain.ButtonFactoryReset:     {},
}

// Verify checks a device with the given settings without touching the
// current connection.
func (g *Garage) Verify(ctx context.Context, address string, port int, username, password string) (domain.VerificationResult, error) {
	if g.verify == nil {
		return "", ErrNoVerifier
	}
	return g.verify(ctx, address, port, username, password)
}
