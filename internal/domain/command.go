package domain

type Action string

const (
	ActionOpen        Action = "open"
	ActionClose       Action = "close"
	ActionStop        Action = "stop"
	ActionToggle      Action = "toggle"
	ActionSetPosition Action = "set_position"
	ActionTurnOn      Action = "turn_on"
	ActionTurnOff     Action = "turn_off"
	ActionPress       Action = "press"
	ActionSetProtocol Action = "set_protocol"
)

type TargetType string

const (
	TargetTypeDoor     TargetType = "door"
	TargetTypeSwitch   TargetType = "switch"
	TargetTypeButton   TargetType = "button"
	TargetTypeProtocol TargetType = "security_protocol"
)

// Command is a control request coming from one of the bridge surfaces
// (MQTT, HTTP). Only the fields relevant to TargetType are set.
type Command struct {
	ID         string
	Action     Action
	TargetType TargetType
	Switch     Switch
	Button     Button
	Position   float64
	Protocol   SecurityProtocol
	Source     string
}
