package konnected

import "gdo-bridge/internal/domain"

// Endpoint is a path on the device web server.
type Endpoint string

const (
	EventsEndpoint Endpoint = "/events"

	GarageDoor       Endpoint = "/cover/garage_door"
	GarageDoorOpen   Endpoint = "/cover/garage_door/open"
	GarageDoorClose  Endpoint = "/cover/garage_door/close"
	GarageDoorStop   Endpoint = "/cover/garage_door/stop"
	GarageDoorToggle Endpoint = "/cover/garage_door/toggle"
	GarageDoorSet    Endpoint = "/cover/garage_door/set"

	ToggleOnly    Endpoint = "/switch/toggle_only"
	ToggleOnlyOn  Endpoint = "/switch/toggle_only/turn_on"
	ToggleOnlyOff Endpoint = "/switch/toggle_only/turn_off"

	GarageLight        Endpoint = "/light/garage_light"
	GarageLightTurnOn  Endpoint = "/light/garage_light/turn_on"
	GarageLightTurnOff Endpoint = "/light/garage_light/turn_off"
	GarageLightToggle  Endpoint = "/light/garage_light/toggle"

	Lock       Endpoint = "/lock/lock"
	LockLock   Endpoint = "/lock/lock/lock"
	LockUnlock Endpoint = "/lock/lock/unlock"

	MotionSensor      Endpoint = "/binary_sensor/motion"
	RollingCodeSynced Endpoint = "/binary_sensor/synced"
	Obstruction       Endpoint = "/binary_sensor/obstruction"
	MotorRunning      Endpoint = "/binary_sensor/motor"
	WallButtonPressed Endpoint = "/binary_sensor/wall_button"
	GarageOpenings    Endpoint = "/sensor/garage_openings"

	SecurityProtocolSelect Endpoint = "/select/security__protocol"
	SecurityProtocolSet    Endpoint = "/select/security__protocol/set"

	Learn       Endpoint = "/switch/learn"
	LearnOn     Endpoint = "/switch/learn/turn_on"
	LearnOff    Endpoint = "/switch/learn/turn_off"
	LearnToggle Endpoint = "/switch/learn/toggle"

	WifiSignalRSSI    Endpoint = "/sensor/wifi_signal_rssi"
	WifiSignalPercent Endpoint = "/sensor/wifi_signal__"
	Uptime            Endpoint = "/sensor/uptime"
	DeviceID          Endpoint = "/text_sensor/device_id"
	IPAddress         Endpoint = "/text_sensor/ip_address"

	PreCloseWarningPress  Endpoint = "/button/pre-close_warning/press"
	PlaySoundPress        Endpoint = "/button/play_sound/press"
	RestartPress          Endpoint = "/button/restart/press"
	FactoryResetPress     Endpoint = "/button/factory_reset/press"
	ReSyncPress           Endpoint = "/button/re-sync/press"
	ResetDoorTimingsPress Endpoint = "/button/reset_door_timings/press"
)

// Query parameter names accepted by the action endpoints.
const (
	paramPosition = "position"
	paramOption   = "option"
)

// ButtonMappings maps each button to its press endpoint.
var ButtonMappings = map[domain.Button]Endpoint{
	domain.ButtonPlaySound:        PlaySoundPress,
	domain.ButtonPreCloseWarning:  PreCloseWarningPress,
	domain.ButtonReSync:           ReSyncPress,
	domain.ButtonResetDoorTimings: ResetDoorTimingsPress,
	domain.ButtonRestart:          RestartPress,
	domain.ButtonFactoryReset:     FactoryResetPress,
}

// SwitchEndpoints holds the action endpoints driving one switch.
type SwitchEndpoints struct {
	On  Endpoint
	Off Endpoint
}

// SwitchMappings maps each switch to its on/off endpoints.
var SwitchMappings = map[domain.Switch]SwitchEndpoints{
	domain.SwitchLight:      {On: GarageLightTurnOn, Off: GarageLightTurnOff},
	domain.SwitchRemoteLock: {On: LockLock, Off: LockUnlock},
	domain.SwitchToggleOnly: {On: ToggleOnlyOn, Off: ToggleOnlyOff},
	domain.SwitchLearn:      {On: LearnOn, Off: LearnOff},
}
