package model

import "fmt"

const (
	DefaultTemperature = 15
	DefaultMode        = ModeAuto
)

type Limits struct {
	MinTemp   int
	MaxTemp   int
	FanLevels int
}

// DaikinLimits are the bounds of the Daikin ARC remote protocol.
var DaikinLimits = Limits{MinTemp: 10, MaxTemp: 32, FanLevels: 5}

// ACState is the canonical commanded state of the unit. Temperature never leaves
// [MinTemp, MaxTemp] and mode/fan always hold a supported variant.
type ACState struct {
	limits Limits

	power           bool
	temperature     int
	mode            Mode
	fan             Fan
	swingVertical   bool
	swingHorizontal bool
	quiet           bool
	powerful        bool
}

// NewACState returns the boot state: 15 degrees, fan auto, mode auto, power as sensed.
func NewACState(limits Limits, sensedPower bool) *ACState {
	s := &ACState{
		limits: limits,
		power:  sensedPower,
		mode:   DefaultMode,
		fan:    DefaultFan,
	}
	s.SetTemperature(DefaultTemperature)
	return s
}

func (s *ACState) Limits() Limits        { return s.limits }
func (s *ACState) Power() bool           { return s.power }
func (s *ACState) Temperature() int      { return s.temperature }
func (s *ACState) Mode() Mode            { return s.mode }
func (s *ACState) Fan() Fan              { return s.fan }
func (s *ACState) SwingVertical() bool   { return s.swingVertical }
func (s *ACState) SwingHorizontal() bool { return s.swingHorizontal }
func (s *ACState) Quiet() bool           { return s.quiet }
func (s *ACState) Powerful() bool        { return s.powerful }

func (s *ACState) SetPower(on bool)           { s.power = on }
func (s *ACState) SetSwingVertical(on bool)   { s.swingVertical = on }
func (s *ACState) SetSwingHorizontal(on bool) { s.swingHorizontal = on }
func (s *ACState) SetQuiet(on bool)           { s.quiet = on }
func (s *ACState) SetPowerful(on bool)        { s.powerful = on }

// ClampTemperature returns t limited to the unit's supported range.
func (s *ACState) ClampTemperature(t int) int {
	if t < s.limits.MinTemp {
		return s.limits.MinTemp
	}
	if t > s.limits.MaxTemp {
		return s.limits.MaxTemp
	}
	return t
}

// SetTemperature stores t clamped into range and returns the stored value.
func (s *ACState) SetTemperature(t int) int {
	s.temperature = s.ClampTemperature(t)
	return s.temperature
}

func (s *ACState) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("unsupported mode %q", m)
	}
	s.mode = m
	return nil
}

func (s *ACState) SetFan(f Fan) error {
	if !f.Valid(s.limits.FanLevels) {
		return fmt.Errorf("unsupported fan setting %q", f.String())
	}
	s.fan = f
	return nil
}

// State is a value copy of every ACState field, used for transmission and status output.
type State struct {
	PowerOn         bool `json:"powerOn"`
	Temp            int  `json:"temp"`
	Mode            Mode `json:"mode"`
	Fan             Fan  `json:"fan"`
	SwingVertical   bool `json:"swingVertical"`
	SwingHorizontal bool `json:"swingHorizontal"`
	Quiet           bool `json:"quiet"`
	Powerful        bool `json:"powerful"`
}

func (s *ACState) Snapshot() State {
	return State{
		PowerOn:         s.power,
		Temp:            s.temperature,
		Mode:            s.mode,
		Fan:             s.fan,
		SwingVertical:   s.swingVertical,
		SwingHorizontal: s.swingHorizontal,
		Quiet:           s.quiet,
		Powerful:        s.powerful,
	}
}
