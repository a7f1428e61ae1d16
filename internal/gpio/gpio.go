package gpio

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/pinctrl"
)

// Pin is a digital input with its active polarity.
type Pin struct {
	Number     int
	ActiveHigh bool
}

var readLevel = pinctrl.ReadLevel
var readPin = pinctrl.ReadPin

// PowerSensor reports whether the unit is drawing power, read from a comparator
// output (photoresistor on the unit's power LED) wired to a GPIO input.
type PowerSensor struct {
	pin Pin
}

func NewPowerSensor(pin Pin) *PowerSensor {
	return &PowerSensor{pin: pin}
}

// PowerOn reads the pin live. A failed read counts as off so automation never acts on a
// unit whose state is unknown.
func (s *PowerSensor) PowerOn() bool {
	on, err := s.Read()
	if err != nil {
		log.Error().Err(err).Int("pin", s.pin.Number).Msg("Failed to read power sense pin, assuming unit is off")
		return false
	}
	return on
}

// Read returns the sensed power with the read error, for callers that track sensor health.
func (s *PowerSensor) Read() (bool, error) {
	level, err := readLevel(s.pin.Number)
	if err != nil {
		return false, err
	}
	return level == s.pin.ActiveHigh, nil
}

// ValidateStartup checks that the sense pin is configured as an input.
func (s *PowerSensor) ValidateStartup() error {
	state, err := readPin(s.pin.Number)
	if err != nil {
		return fmt.Errorf("failed to read power sense pin %d: %w", s.pin.Number, err)
	}
	if !state.IsInput() {
		return fmt.Errorf("power sense pin %d is in mode %q, expected input", s.pin.Number, state.Mode)
	}
	return nil
}
