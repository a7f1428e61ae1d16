package commandcontroller

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/datadog"
	"github.com/thatsimonsguy/ac-controller/internal/irsend"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type PowerSensor interface {
	PowerOn() bool
}

// Result reports what an applied command did.
type Result struct {
	// StateChanged is true when at least one field asked for a transmission.
	StateChanged bool
	// PowerOn is the commanded power if the command set it, otherwise the sensed power.
	PowerOn     bool
	Transmitted bool
	TransmitErr error
	Warnings    []*model.ValidationError
}

type Applier struct {
	state  *model.ACState
	tx     irsend.Transmitter
	sensor PowerSensor
}

func New(state *model.ACState, tx irsend.Transmitter, sensor PowerSensor) *Applier {
	return &Applier{state: state, tx: tx, sensor: sensor}
}

// Apply writes every present field of cmd into the AC state in one pass and sends a
// single IR frame if any field asked for one.
func (a *Applier) Apply(ctx context.Context, cmd model.PartialCommand) Result {
	res := Result{PowerOn: a.sensor.PowerOn()}

	for _, w := range cmd.Rejected {
		a.warn(&res, w)
	}

	if on, ok := cmd.PowerOn.Get(); ok {
		a.state.SetPower(on)
		res.PowerOn = on
		res.StateChanged = true // a power toggle is always sent, even if nothing else changed
		log.Info().Str("field", "powerOn").Bool("value", on).Msg("AC power set")
	}

	if token, ok := cmd.Mode.Get(); ok {
		a.applyMode(&res, token)
	}

	if delta, ok := cmd.TempDelta.Get(); ok && delta != 0 {
		a.applyTempDelta(&res, delta)
	}

	if temp, ok := cmd.Temp.Get(); ok {
		a.applyTemp(&res, temp)
	}

	if token, ok := cmd.Fan.Get(); ok {
		a.applyFan(&res, token)
	}

	a.applyBool(&res, "swingVertical", cmd.SwingVertical, a.state.SetSwingVertical)
	a.applyBool(&res, "swingHorizontal", cmd.SwingHorizontal, a.state.SetSwingHorizontal)
	a.applyBool(&res, "quiet", cmd.Quiet, a.state.SetQuiet)
	a.applyBool(&res, "powerful", cmd.Powerful, a.state.SetPowerful)

	if res.StateChanged {
		res.TransmitErr = Transmit(ctx, a.tx, a.state)
		res.Transmitted = res.TransmitErr == nil
	}

	return res
}

func (a *Applier) applyMode(res *Result, token string) {
	mode, ok := model.ParseMode(token)
	if !ok {
		a.warn(res, &model.ValidationError{Field: "mode", Value: token, Reason: "unknown mode"})
		return
	}
	if mode == a.state.Mode() {
		log.Debug().Str("field", "mode").Str("value", string(mode)).Msg("Mode unchanged, skipping")
		return
	}
	_ = a.state.SetMode(mode) // ParseMode only returns valid modes
	res.StateChanged = true
	log.Info().Str("field", "mode").Str("value", string(mode)).Msg("AC mode set")
}

func (a *Applier) applyTempDelta(res *Result, delta int) {
	limits := a.state.Limits()
	span := limits.MaxTemp - limits.MinTemp
	if delta > span {
		delta = span
	} else if delta < -span {
		delta = -span
	}

	before := a.state.Temperature()
	after := a.state.SetTemperature(before + delta)
	// a delta is taken as intentional even when clamping leaves the value where it was
	res.StateChanged = true
	log.Info().Str("field", "tempDelta").Int("delta", delta).Int("from", before).Int("to", after).Msg("AC temperature adjusted")
}

func (a *Applier) applyTemp(res *Result, requested int) {
	target := a.state.ClampTemperature(requested)
	if target != requested {
		log.Info().Int("requested", requested).Int("clamped", target).Msg("Requested temperature outside unit range")
	}
	if target == a.state.Temperature() {
		log.Debug().Str("field", "temp").Int("value", target).Msg("Temperature unchanged, skipping")
		return
	}
	a.state.SetTemperature(target)
	res.StateChanged = true
	log.Info().Str("field", "temp").Int("value", target).Msg("AC temperature set")
}

func (a *Applier) applyFan(res *Result, token string) {
	fan, err := model.ParseFan(token, a.state.Limits().FanLevels)
	if err != nil {
		a.warn(res, &model.ValidationError{Field: "fan", Value: token, Reason: err.Error()})
		return
	}
	if err := a.state.SetFan(fan); err != nil {
		a.warn(res, &model.ValidationError{Field: "fan", Value: token, Reason: err.Error()})
		return
	}
	res.StateChanged = true
	log.Info().Str("field", "fan").Str("value", fan.String()).Msg("AC fan set")
}

// applyBool sets a flag and always asks for a transmission, even when the value is unchanged.
func (a *Applier) applyBool(res *Result, field string, opt model.Optional[bool], set func(bool)) {
	v, ok := opt.Get()
	if !ok {
		return
	}
	set(v)
	res.StateChanged = true
	log.Info().Str("field", field).Bool("value", v).Msg("AC flag set")
}

func (a *Applier) warn(res *Result, w *model.ValidationError) {
	res.Warnings = append(res.Warnings, w)
	metrics.ValidationWarnings.WithLabelValues(w.Field).Inc()
	log.Warn().Str("field", w.Field).Str("value", w.Value).Msg(w.Reason)
}

// Transmit sends the full state as one IR frame and records the outcome.
func Transmit(ctx context.Context, tx irsend.Transmitter, state *model.ACState) error {
	log.Info().Msg("AC: Sending IR signal")
	if err := tx.Send(ctx, state.Snapshot()); err != nil {
		metrics.Transmissions.WithLabelValues("error").Inc()
		datadog.Incr("ac.ir_transmissions", "result:error")
		log.Error().Err(err).Msg("IR transmission failed")
		return err
	}
	metrics.Transmissions.WithLabelValues("ok").Inc()
	datadog.Incr("ac.ir_transmissions", "result:ok")
	return nil
}
