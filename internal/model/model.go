package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeAuto Mode = "auto"
	ModeCool Mode = "cool"
	ModeHeat Mode = "heat"
	ModeFan  Mode = "fan"
	ModeDry  Mode = "dry"
)

var modes = []Mode{ModeAuto, ModeCool, ModeHeat, ModeFan, ModeDry}

func (m Mode) Valid() bool {
	for _, known := range modes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode maps an external token to a Mode, ignoring case and surrounding space.
func ParseMode(token string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(token)))
	if !m.Valid() {
		return "", false
	}
	return m, true
}

type FanPreset string

const (
	FanAuto  FanPreset = "auto"
	FanMin   FanPreset = "min"
	FanMax   FanPreset = "max"
	FanLevel FanPreset = "level" // numeric speed between min and max, see Fan.Level
)

// Fan is either a named preset or a numeric level strictly between the lowest and highest speed.
type Fan struct {
	Preset FanPreset
	Level  int
}

var DefaultFan = Fan{Preset: FanAuto}

func (f Fan) String() string {
	if f.Preset == FanLevel {
		return strconv.Itoa(f.Level)
	}
	return string(f.Preset)
}

func (f Fan) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// Valid reports whether f is a fan setting the unit supports with the given number of speed levels.
func (f Fan) Valid(levels int) bool {
	switch f.Preset {
	case FanAuto, FanMin, FanMax:
		return true
	case FanLevel:
		return f.Level > 1 && f.Level < levels
	default:
		return false
	}
}

// ParseFan accepts auto/min/max in any case, or a numeric level in 1..levels.
// Level 1 and level `levels` are reported as the min and max presets.
func ParseFan(token string, levels int) (Fan, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch FanPreset(t) {
	case FanAuto, FanMin, FanMax:
		return Fan{Preset: FanPreset(t)}, nil
	}

	n, err := strconv.Atoi(t)
	if err != nil {
		return Fan{}, fmt.Errorf("not a preset or integer level")
	}
	if n < 1 || n > levels {
		return Fan{}, fmt.Errorf("level %d outside 1..%d", n, levels)
	}

	switch n {
	case 1:
		return Fan{Preset: FanMin}, nil
	case levels:
		return Fan{Preset: FanMax}, nil
	}
	return Fan{Preset: FanLevel, Level: n}, nil
}
