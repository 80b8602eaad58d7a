package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gdo-bridge/internal/domain"
)

type reading struct {
	name string
	read func(ctx context.Context, d StatusReader) (domain.Event, error)
}

var readings = []reading{
	{"door", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		open, err := d.IsGarageDoorOpen(ctx)
		if err != nil {
			return nil, err
		}
		pos, err := d.GarageDoorPosition(ctx)
		if err != nil {
			return nil, err
		}
		return domain.DoorEvent{Closed: !open, Position: pos}, nil
	}},
	{"light", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		on, err := d.IsGarageLightOn(ctx)
		return domain.SwitchEvent{Switch: domain.SwitchLight, On: on}, err
	}},
	{"lock", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		locked, err := d.IsRemoteLocked(ctx)
		return domain.SwitchEvent{Switch: domain.SwitchRemoteLock, On: locked}, err
	}},
	{"obstruction", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		active, err := d.IsObstructionDetected(ctx)
		return domain.AlarmEvent{Alarm: domain.AlarmObstructionDetected, Active: active}, err
	}},
	{"synced", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		synced, err := d.IsSynced(ctx)
		return domain.AlarmEvent{Alarm: domain.AlarmSynced, Active: synced}, err
	}},
	{"openings", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		count, known, err := d.GarageOpenings(ctx)
		return domain.MeasurementEvent{Measurement: domain.MeasurementOpenings, Value: float64(count), Known: known}, err
	}},
	{"security protocol", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		p, err := d.SecurityProtocol(ctx)
		return domain.SecurityProtocolEvent{Protocol: p}, err
	}},
	{"wifi signal", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		rssi, known, err := d.WifiSignalRSSI(ctx)
		return domain.MeasurementEvent{Measurement: domain.MeasurementWifiStrength, Value: rssi, Known: known}, err
	}},
	{"uptime", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		uptime, err := d.Uptime(ctx)
		return domain.MeasurementEvent{Measurement: domain.MeasurementUptime, Value: uptime.Seconds(), Known: true}, err
	}},
	{"device id", func(ctx context.Context, d StatusReader) (domain.Event, error) {
		id, err := d.DeviceID(ctx)
		return domain.IdentityEvent{Field: domain.IdentityDeviceID, Value: id}, err
	}},
}

// Refresh reads every component once and feeds the results through the
// same path as pushed events. An unauthorized device stops the round.
func (g *Garage) Refresh(ctx context.Context) error {
	var errs []error

	for _, r := range readings {
		ev, err := r.read(ctx, g.device)
		if err != nil {
			errs = append(errs, fmt.Errorf("refreshing %s: %w", r.name, err))
			if errors.Is(err, domain.ErrUnauthorized) || ctx.Err() != nil {
				break
			}
			continue
		}
		g.dispatch(ev)
	}

	return errors.Join(errs...)
}

func (g *Garage) StartPeriodicRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Refresh(ctx); err != nil {
					g.logger.Error("periodic refresh failed", "error", err)
				}
			}
		}
	}()
}
