package commandcontroller

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type fakeTransmitter struct {
	sent []model.State
	err  error
}

func (f *fakeTransmitter) Send(_ context.Context, s model.State) error {
	f.sent = append(f.sent, s)
	return f.err
}

type fakeSensor bool

func (f fakeSensor) PowerOn() bool { return bool(f) }

func setup(sensed bool) (*Applier, *model.ACState, *fakeTransmitter) {
	state := model.NewACState(model.DaikinLimits, sensed)
	tx := &fakeTransmitter{}
	return New(state, tx, fakeSensor(sensed)), state, tx
}

func parse(t *testing.T, payload string) model.PartialCommand {
	t.Helper()
	cmd, err := model.ParseCommand([]byte(payload))
	require.NoError(t, err)
	return cmd
}

func TestApply_ModeAndTempFromDefaults(t *testing.T) {
	a, state, tx := setup(true)

	res := a.Apply(context.Background(), parse(t, `{"status":{"mode":"heat","temp":24}}`))

	assert.True(t, res.StateChanged)
	assert.True(t, res.Transmitted)
	assert.Equal(t, model.ModeHeat, state.Mode())
	assert.Equal(t, 24, state.Temperature())
	require.Len(t, tx.sent, 1)
	assert.Equal(t, 24, tx.sent[0].Temp)
	assert.Equal(t, model.ModeHeat, tx.sent[0].Mode)
}

func TestApply_SameModeIsNotAChange(t *testing.T) {
	a, state, tx := setup(true)
	require.NoError(t, state.SetMode(model.ModeCool))

	res := a.Apply(context.Background(), parse(t, `{"status":{"mode":"COOL"}}`))

	assert.False(t, res.StateChanged)
	assert.Empty(t, tx.sent)
}

func TestApply_SameTempIsNotAChange(t *testing.T) {
	tests := []struct {
		name    string
		current int
		payload string
	}{
		{"exact", 22, `{"status":{"temp":22}}`},
		{"clamped to current max", 32, `{"status":{"temp":99}}`},
		{"clamped to current min", 10, `{"status":{"temp":-5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, state, tx := setup(true)
			state.SetTemperature(tt.current)

			res := a.Apply(context.Background(), parse(t, tt.payload))

			assert.False(t, res.StateChanged)
			assert.Empty(t, tx.sent)
			assert.Equal(t, tt.current, state.Temperature())
		})
	}
}

func TestApply_TempClamped(t *testing.T) {
	a, state, _ := setup(true)

	res := a.Apply(context.Background(), parse(t, `{"status":{"temp":99}}`))

	assert.True(t, res.StateChanged)
	assert.Equal(t, 32, state.Temperature())
}

func TestApply_TempClampedRegardlessOfMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected int
	}{
		{"beyond int range", `{"status":{"temp":99999999999999999999}}`, 32},
		{"below int range", `{"status":{"temp":-99999999999999999999}}`, 10},
		{"delta beyond int range", `{"status":{"tempDelta":"99999999999999999999"}}`, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, state, tx := setup(true)

			res := a.Apply(context.Background(), parse(t, tt.payload))

			assert.Empty(t, res.Warnings)
			assert.True(t, res.StateChanged)
			assert.Equal(t, tt.expected, state.Temperature())
			assert.Len(t, tx.sent, 1)
		})
	}
}

func TestApply_TempDelta(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		delta    string
		expected int
		changed  bool
	}{
		{"up", 20, "2", 22, true},
		{"down", 20, "-3", 17, true},
		{"zero is absent", 20, "0", 20, false},
		{"clamped but still sent", 32, "1", 32, true},
		{"huge delta saturates", 20, "9223372036854775807", 32, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, state, tx := setup(true)
			state.SetTemperature(tt.start)

			res := a.Apply(context.Background(), parse(t, `{"status":{"tempDelta":`+tt.delta+`}}`))

			assert.Equal(t, tt.changed, res.StateChanged)
			assert.Equal(t, tt.expected, state.Temperature())
			if tt.changed {
				assert.Len(t, tx.sent, 1)
			} else {
				assert.Empty(t, tx.sent)
			}
		})
	}
}

func TestApply_UnknownTokensIgnored(t *testing.T) {
	a, state, tx := setup(true)
	before := testutil.ToFloat64(metrics.ValidationWarnings.WithLabelValues("fan"))

	res := a.Apply(context.Background(), parse(t, `{"status":{"fan":"turbo","mode":"fan_only"}}`))

	assert.False(t, res.StateChanged)
	assert.Empty(t, tx.sent)
	assert.Equal(t, model.DefaultFan, state.Fan())
	assert.Equal(t, model.ModeAuto, state.Mode())
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ValidationWarnings.WithLabelValues("fan")))
}

func TestApply_FanOutOfRangeNotPartiallyApplied(t *testing.T) {
	a, state, tx := setup(true)
	require.NoError(t, state.SetFan(model.Fan{Preset: model.FanLevel, Level: 3}))

	res := a.Apply(context.Background(), parse(t, `{"status":{"fan":"7"}}`))

	assert.False(t, res.StateChanged)
	assert.Empty(t, tx.sent)
	assert.Equal(t, "3", state.Fan().String())
}

func TestApply_FanValid(t *testing.T) {
	a, state, tx := setup(true)

	res := a.Apply(context.Background(), parse(t, `{"status":{"fan":"Max"}}`))

	assert.True(t, res.StateChanged)
	assert.Equal(t, "max", state.Fan().String())
	assert.Len(t, tx.sent, 1)
}

func TestApply_BooleansAlwaysTransmit(t *testing.T) {
	a, state, tx := setup(true)

	res := a.Apply(context.Background(), parse(t, `{"status":{"quiet":false,"swingVertical":false}}`))

	assert.True(t, res.StateChanged)
	assert.Len(t, tx.sent, 1)
	assert.False(t, state.Quiet())
}

func TestApply_ExplicitFalseApplied(t *testing.T) {
	a, state, _ := setup(true)
	state.SetSwingHorizontal(true)
	state.SetPowerful(true)

	a.Apply(context.Background(), parse(t, `{"status":{"swingHorizontal":false,"powerful":"false"}}`))

	assert.False(t, state.SwingHorizontal())
	assert.False(t, state.Powerful())
}

func TestApply_ManyFieldsOneTransmission(t *testing.T) {
	a, state, tx := setup(false)

	res := a.Apply(context.Background(), parse(t, `{"status":{
		"powerOn":true,"mode":"cool","temp":21,"fan":"2",
		"swingVertical":true,"swingHorizontal":true,"quiet":true,"powerful":false}}`))

	assert.True(t, res.StateChanged)
	require.Len(t, tx.sent, 1)
	assert.Equal(t, model.State{
		PowerOn:         true,
		Temp:            21,
		Mode:            model.ModeCool,
		Fan:             model.Fan{Preset: model.FanLevel, Level: 2},
		SwingVertical:   true,
		SwingHorizontal: true,
		Quiet:           true,
		Powerful:        false,
	}, tx.sent[0])
	assert.Equal(t, tx.sent[0], state.Snapshot())
}

func TestApply_PowerOnResult(t *testing.T) {
	t.Run("explicit power wins over sensed", func(t *testing.T) {
		a, state, tx := setup(true)
		res := a.Apply(context.Background(), parse(t, `{"status":{"powerOn":"false"}}`))

		assert.True(t, res.StateChanged)
		assert.False(t, res.PowerOn)
		assert.False(t, state.Power())
		assert.Len(t, tx.sent, 1)
	})

	t.Run("sensed power when not set", func(t *testing.T) {
		a, _, _ := setup(true)
		res := a.Apply(context.Background(), parse(t, `{"status":{"mode":"dry"}}`))
		assert.True(t, res.PowerOn)
	})
}

func TestApply_TransmitErrorReported(t *testing.T) {
	a, state, tx := setup(true)
	tx.err = errors.New("led missing")

	res := a.Apply(context.Background(), parse(t, `{"status":{"temp":25}}`))

	assert.True(t, res.StateChanged)
	assert.False(t, res.Transmitted)
	assert.Error(t, res.TransmitErr)
	assert.Equal(t, 25, state.Temperature())
}

func TestApply_EmptyStatusIsNoop(t *testing.T) {
	a, _, tx := setup(true)

	res := a.Apply(context.Background(), parse(t, `{"status":{}}`))

	assert.False(t, res.StateChanged)
	assert.Empty(t, tx.sent)
}
