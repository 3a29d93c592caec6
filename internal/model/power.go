package model

import "time"

// PowerState is the discrete power supply state derived from UPS readings.
type PowerState string

const (
	PowerOnline     PowerState = "online"
	PowerOnBattery  PowerState = "on-battery"
	PowerLowBattery PowerState = "low-battery"
	PowerCritical   PowerState = "critical"
)

// Severity orders power states from least to most severe. Used to decide
// whether a transition is an escalation.
func (s PowerState) Severity() int {
	switch s {
	case PowerOnline:
		return 0
	case PowerOnBattery:
		return 1
	case PowerLowBattery:
		return 2
	case PowerCritical:
		return 3
	default:
		return -1
	}
}

// PowerReading is one raw poll result from the UPS status source.
type PowerReading struct {
	OnBattery      bool
	ChargePercent  float64
	RuntimeSeconds int64
	RawStatus      string
}

// PowerStatus is the monitor's externally visible state.
type PowerStatus struct {
	State         PowerState `json:"state"`
	PreviousState PowerState `json:"previous_state"`
	ChargePercent float64    `json:"charge_percent"`
	RuntimeSecs   int64      `json:"runtime_seconds"`
	TransitionAt  *time.Time `json:"transition_at,omitempty"`
}
