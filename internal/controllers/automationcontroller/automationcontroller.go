package automationcontroller

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/config"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/commandcontroller"
	"github.com/thatsimonsguy/ac-controller/internal/datadog"
	"github.com/thatsimonsguy/ac-controller/internal/irsend"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type ArmedState int

const (
	ArmedUnknown ArmedState = iota
	Armed
	Disarmed
)

func armedStateOf(armed bool) ArmedState {
	if armed {
		return Armed
	}
	return Disarmed
}

func (s ArmedState) String() string {
	switch s {
	case Armed:
		return "armed"
	case Disarmed:
		return "disarmed"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeNoMatch        Outcome = "no_match"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeDisabled       Outcome = "disabled"
	OutcomeUnitOff        Outcome = "unit_off"
	OutcomeNoProfile      Outcome = "no_profile"
	OutcomeManualOverride Outcome = "manual_override"
	OutcomeApplied        Outcome = "applied"
)

type PowerSensor interface {
	PowerOn() bool
}

// TimerResetter forces the next status publish to go out immediately.
type TimerResetter interface {
	ResetTimer()
}

type Notifier interface {
	Send(title, message string) error
}

// Transition describes what one armed signal did.
type Transition struct {
	Outcome     Outcome
	Armed       bool
	Profile     *Profile
	Transmitted bool
}

// Engine switches the AC between profiles when the configured area is armed or
// disarmed, without undoing changes a person made in between.
type Engine struct {
	state       *model.ACState
	tx          irsend.Transmitter
	sensor      PowerSensor
	timer       TimerResetter
	notifier    Notifier
	enabled     bool
	triggerArea string
	profiles    ProfileTable

	lastArmed ArmedState
	// armedFamily is the mode family whose armed profile was applied on the last
	// arm edge, empty when that edge applied nothing.
	armedFamily model.Mode
}

func New(cfg config.Automation, state *model.ACState, tx irsend.Transmitter, sensor PowerSensor, timer TimerResetter, notifier Notifier) *Engine {
	return &Engine{
		state:       state,
		tx:          tx,
		sensor:      sensor,
		timer:       timer,
		notifier:    notifier,
		enabled:     cfg.Enabled,
		triggerArea: cfg.TriggerArea,
		profiles:    NewProfileTable(cfg.Profiles),
		lastArmed:   ArmedUnknown,
	}
}

func (e *Engine) LastArmed() ArmedState {
	return e.lastArmed
}

func (e *Engine) Handle(ctx context.Context, sig model.ArmedSignal) Transition {
	t := e.evaluate(ctx, sig)
	metrics.AutomationOutcomes.WithLabelValues(string(t.Outcome)).Inc()
	return t
}

func (e *Engine) evaluate(ctx context.Context, sig model.ArmedSignal) Transition {
	// first match only
	area, ok := sig.FirstArea(e.triggerArea)
	if !ok {
		log.Debug().Str("area", e.triggerArea).Msg("Armed signal does not mention trigger area")
		return Transition{Outcome: OutcomeNoMatch}
	}

	t := Transition{Armed: area.IsArmed}
	observed := armedStateOf(area.IsArmed)
	if observed == e.lastArmed {
		log.Info().Str("area", area.Name).Str("armed", observed.String()).Msg("Armed state unchanged")
		t.Outcome = OutcomeUnchanged
		return t
	}

	log.Info().Str("area", area.Name).Str("from", e.lastArmed.String()).Str("to", observed.String()).Msg("Armed state changed")
	e.lastArmed = observed
	armedFamily := e.armedFamily
	e.armedFamily = ""
	datadog.Gauge("automation.armed", boolGauge(area.IsArmed), "area:"+area.Name)

	if !e.enabled {
		log.Info().Msg("Automation disabled, ignoring armed state change")
		t.Outcome = OutcomeDisabled
		return t
	}
	if !e.sensor.PowerOn() {
		log.Info().Msg("AC is off, automation leaves it off")
		t.Outcome = OutcomeUnitOff
		return t
	}

	// a disarm resolves against the family that was armed, since the armed profile
	// may have moved the unit into another mode
	family := e.state.Mode()
	if !area.IsArmed && armedFamily != "" {
		family = armedFamily
	}
	armedProfile, ok := e.profiles.Lookup(family, true)
	if !ok {
		log.Debug().Str("mode", string(family)).Msg("No automation profile for current mode")
		t.Outcome = OutcomeNoProfile
		return t
	}

	target := armedProfile
	if !area.IsArmed {
		if e.state.Mode() != armedProfile.Mode || e.state.Temperature() != armedProfile.Temp {
			log.Info().
				Str("mode", string(e.state.Mode())).
				Int("temp", e.state.Temperature()).
				Str("armed_mode", string(armedProfile.Mode)).
				Int("armed_temp", armedProfile.Temp).
				Msg("AC changed manually since arming, leaving it as is")
			t.Outcome = OutcomeManualOverride
			e.notify("AC automation skipped", fmt.Sprintf("Disarmed, but the AC was changed manually to %s %d°C", e.state.Mode(), e.state.Temperature()))
			return t
		}
		disarmed, ok := e.profiles.Lookup(family, false)
		if !ok {
			log.Info().Str("mode", string(family)).Msg("No disarmed profile for armed mode family")
			t.Outcome = OutcomeNoProfile
			return t
		}
		target = disarmed
	}

	t.Transmitted = e.apply(ctx, target)
	if area.IsArmed {
		e.armedFamily = family
	}
	t.Profile = &target
	t.Outcome = OutcomeApplied
	e.notify("AC automation", describe(observed, target))
	return t
}

func (e *Engine) apply(ctx context.Context, p Profile) bool {
	if p.PowerOn {
		e.state.SetPower(true)
		e.state.SetTemperature(p.Temp)
		if err := e.state.SetMode(p.Mode); err != nil {
			log.Error().Err(err).Msg("Automation profile has an invalid mode")
		}
		log.Info().Int("temp", p.Temp).Str("mode", string(p.Mode)).Msg("Applying automation profile")
	} else {
		e.state.SetPower(false)
		log.Info().Msg("Automation profile turns the AC off")
	}

	err := commandcontroller.Transmit(ctx, e.tx, e.state)
	e.timer.ResetTimer()
	return err == nil
}

func (e *Engine) notify(title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(title, message); err != nil {
		log.Warn().Err(err).Msg("Failed to send automation notification")
	}
}

func describe(s ArmedState, p Profile) string {
	if !p.PowerOn {
		return fmt.Sprintf("Home %s: AC turned off", s)
	}
	return fmt.Sprintf("Home %s: AC set to %s %d°C", s, p.Mode, p.Temp)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
