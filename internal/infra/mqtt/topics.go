package mqtt

import (
	"fmt"
	"strings"

	"gdo-bridge/internal/domain"
)

// Topics builds the topic tree of one device:
//
//	<prefix>/<device>/availability
//	<prefix>/<device>/state/<kind>
//	<prefix>/<device>/command/<target>[/<name>]
type Topics struct {
	Prefix string
	Device string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.Device)
}

// Availability carries "online" or "offline", retained.
func (t Topics) Availability() string {
	return t.base() + "/availability"
}

func (t Topics) State(kind domain.EventKind) string {
	return fmt.Sprintf("%s/state/%s", t.base(), kind)
}

// Command returns the topic for a command target, e.g. Command("switch", "light").
func (t Topics) Command(parts ...string) string {
	return t.base() + "/command/" + strings.Join(parts, "/")
}

// CommandFilter matches every command topic of the device.
func (t Topics) CommandFilter() string {
	return t.Command("#")
}

// commandTarget returns the path below the command segment, or false when
// topic is not a command topic of this device.
func (t Topics) commandTarget(topic string) ([]string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Command())
	if !ok || rest == "" {
		return nil, false
	}
	return strings.Split(rest, "/"), true
}
