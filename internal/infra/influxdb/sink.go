package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"gdo-bridge/internal/domain"
)

const measurementName = "garage"

// PointWriter is satisfied by the non-blocking api.WriteAPI.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Sink records state events as points in the "garage" measurement, tagged
// by device and event kind.
type Sink struct {
	writer PointWriter
	device string
	now    func() time.Time
}

func NewSink(writer PointWriter, device string) *Sink {
	return &Sink{writer: writer, device: device, now: time.Now}
}

func (s *Sink) HandleEvent(ev domain.Event) {
	if p := pointFor(ev, s.device, s.now()); p != nil {
		s.writer.WritePoint(p)
	}
}

// pointFor returns nil for events without a recordable value.
func pointFor(ev domain.Event, device string, ts time.Time) *write.Point {
	var fields map[string]interface{}

	switch e := ev.(type) {
	case domain.DoorEvent:
		fields = map[string]interface{}{"closed": e.Closed, "position": e.Position}
	case domain.SwitchEvent:
		fields = map[string]interface{}{"on": e.On}
	case domain.AlarmEvent:
		fields = map[string]interface{}{"active": e.Active}
	case domain.MeasurementEvent:
		if !e.Known {
			return nil
		}
		fields = map[string]interface{}{"value": e.Value}
	case domain.AvailabilityEvent:
		fields = map[string]interface{}{"available": e.Available}
	default:
		return nil
	}

	return write.NewPoint(
		measurementName,
		map[string]string{
			"device": device,
			"kind":   string(ev.Kind()),
		},
		fields,
		ts,
	)
}
