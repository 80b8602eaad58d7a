package domain

// Switch identifies a two-state output on the opener.
type Switch string

const (
	SwitchRemoteLock Switch = "switch-remote_lock"
	SwitchLight      Switch = "switch-light"
	SwitchToggleOnly Switch = "switch-toggle_only"
	SwitchLearn      Switch = "switch-learn"
)

// Alarm identifies a boolean sensor reported by the opener.
type Alarm string

const (
	AlarmMotor               Alarm = "alarm-motor"
	AlarmMotionDetected      Alarm = "alarm-motion_detected"
	AlarmSynced              Alarm = "alarm-synced"
	AlarmObstructionDetected Alarm = "alarm-obstruction_detected"
	AlarmWallButtonPressed   Alarm = "alarm-wall_button"
)

// Button identifies a momentary action exposed by the firmware.
type Button string

const (
	ButtonPlaySound        Button = "button-play_sound"
	ButtonPreCloseWarning  Button = "button-pre_close_warning"
	ButtonReSync           Button = "button-re_sync"
	ButtonResetDoorTimings Button = "button-reset_door_timings"
	ButtonRestart          Button = "button-restart"
	ButtonFactoryReset     Button = "button-factory_reset"
)

// SecurityProtocol is the Security+ variant spoken to the opener.
type SecurityProtocol string

const (
	SecurityProtocolAuto                    SecurityProtocol = "auto"
	SecurityProtocolSecurity1               SecurityProtocol = "security+1.0"
	SecurityProtocolSecurity1WithSmartPanel SecurityProtocol = "security+1.0 with smart panel"
	SecurityProtocolSecurity2               SecurityProtocol = "security+2.0"
)

// Valid reports whether p is one of the options the firmware accepts.
func (p SecurityProtocol) Valid() bool {
	switch p {
	case SecurityProtocolAuto, SecurityProtocolSecurity1,
		SecurityProtocolSecurity1WithSmartPanel, SecurityProtocolSecurity2:
		return true
	}
	return false
}

// Measurement identifies a numeric sensor.
type Measurement string

const (
	MeasurementOpenings     Measurement = "openings"
	MeasurementWifiStrength Measurement = "wifi_strength"
	MeasurementWifiPercent  Measurement = "wifi_percentage"
	MeasurementUptime       Measurement = "uptime"
)

// Identity fields reported as text sensors.
type IdentityField string

const (
	IdentityDeviceID  IdentityField = "device_id"
	IdentityIPAddress IdentityField = "ip_address"
)

// Human readable states reported by the firmware.
const (
	DoorStateOpen   = "OPEN"
	DoorStateClosed = "CLOSED"

	StateOn  = "ON"
	StateOff = "OFF"

	LockStateLocked = "LOCKED"
)

// VerificationResult is the outcome of a one-shot connection check.
type VerificationResult string

const (
	VerificationSuccess                VerificationResult = "success"
	VerificationAuthenticationRequired VerificationResult = "authentication_required"
	VerificationInvalidCredentials     VerificationResult = "invalid_credentials"
)
