package konnected_test

import (
	"testing"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra/konnected"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := konnected.NewBus(discardLogger())

	var order []string
	bus.SubscribeAll(func(domain.Event) { order = append(order, "all") })
	bus.Subscribe(domain.EventDoor, func(domain.Event) { order = append(order, "door-1") })
	bus.Subscribe(domain.EventDoor, func(domain.Event) { order = append(order, "door-2") })
	bus.Subscribe(domain.EventError, func(domain.Event) { order = append(order, "error") })

	bus.Publish(domain.DoorEvent{Closed: true})

	want := []string{"door-1", "door-2", "all"}
	if len(order) != len(want) {
		t.Fatalf("deliveries: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := konnected.NewBus(discardLogger())

	var delivered int
	bus.Subscribe(domain.EventDoor, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventDoor, func(domain.Event) { delivered++ })
	bus.SubscribeAll(func(domain.Event) { delivered++ })

	bus.Publish(domain.DoorEvent{Closed: false, Position: 100})

	if delivered != 2 {
		t.Errorf("deliveries after panic: got %d, want 2", delivered)
	}
}

func TestBus_NilEventIgnored(t *testing.T) {
	bus := konnected.NewBus(discardLogger())

	called := false
	bus.SubscribeAll(func(domain.Event) { called = true })
	bus.Publish(nil)

	if called {
		t.Error("subscriber called for nil event")
	}
}

func TestBus_SwitchEventsRoutedByKind(t *testing.T) {
	bus := konnected.NewBus(discardLogger())

	var light, lock int
	bus.Subscribe(domain.KindOfSwitch(domain.SwitchLight), func(domain.Event) { light++ })
	bus.Subscribe(domain.KindOfSwitch(domain.SwitchRemoteLock), func(domain.Event) { lock++ })

	bus.Publish(domain.SwitchEvent{Switch: domain.SwitchLight, On: true})
	bus.Publish(domain.SwitchEvent{Switch: domain.SwitchLight, On: false})
	bus.Publish(domain.SwitchEvent{Switch: domain.SwitchRemoteLock, On: true})

	if light != 2 {
		t.Errorf("light deliveries: got %d, want 2", light)
	}
	if lock != 1 {
		t.Errorf("lock deliveries: got %d, want 1", lock)
	}
}
