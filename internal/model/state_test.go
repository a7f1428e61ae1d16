package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewACState_Defaults(t *testing.T) {
	s := NewACState(DaikinLimits, true)

	assert.True(t, s.Power())
	assert.Equal(t, 15, s.Temperature())
	assert.Equal(t, ModeAuto, s.Mode())
	assert.Equal(t, Fan{Preset: FanAuto}, s.Fan())
	assert.False(t, s.SwingVertical())
	assert.False(t, s.Quiet())
}

func TestNewACState_DefaultTemperatureClamped(t *testing.T) {
	s := NewACState(Limits{MinTemp: 18, MaxTemp: 30, FanLevels: 5}, false)
	assert.Equal(t, 18, s.Temperature())
}

func TestSetTemperature_AlwaysInRange(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"way above max", 99, 32},
		{"negative", -5, 10},
		{"at min", 10, 10},
		{"at max", 32, 32},
		{"in range", 24, 24},
		{"one below min", 9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewACState(DaikinLimits, false)
			got := s.SetTemperature(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, s.Temperature())
		})
	}
}

func TestSetMode_RejectsUnknown(t *testing.T) {
	s := NewACState(DaikinLimits, false)

	require.NoError(t, s.SetMode(ModeHeat))
	assert.Equal(t, ModeHeat, s.Mode())

	assert.Error(t, s.SetMode(Mode("turbo")))
	assert.Equal(t, ModeHeat, s.Mode())
}

func TestSetFan_RejectsOutOfRangeLevel(t *testing.T) {
	s := NewACState(DaikinLimits, false)

	require.NoError(t, s.SetFan(Fan{Preset: FanLevel, Level: 3}))
	assert.Error(t, s.SetFan(Fan{Preset: FanLevel, Level: 9}))
	assert.Equal(t, "3", s.Fan().String())
}

func TestParseMode(t *testing.T) {
	for _, token := range []string{"auto", "COOL", " Heat ", "fan", "Dry"} {
		_, ok := ParseMode(token)
		assert.True(t, ok, token)
	}
	_, ok := ParseMode("fan_only")
	assert.False(t, ok)
}

func TestParseFan(t *testing.T) {
	tests := []struct {
		token    string
		expected string
		valid    bool
	}{
		{"auto", "auto", true},
		{"MAX", "max", true},
		{"Min", "min", true},
		{"1", "min", true},
		{"3", "3", true},
		{"5", "max", true},
		{"0", "", false},
		{"6", "", false},
		{"turbo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			f, err := ParseFan(tt.token, 5)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.String())
		})
	}
}
