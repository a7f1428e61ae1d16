package dispatcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/db"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/automationcontroller"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/commandcontroller"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type CommandApplier interface {
	Apply(ctx context.Context, cmd model.PartialCommand) commandcontroller.Result
}

type SignalHandler interface {
	Handle(ctx context.Context, sig model.ArmedSignal) automationcontroller.Transition
}

type StatusPublisher interface {
	Publish(messageID model.Optional[string], force bool, forcedPowerOn bool) bool
}

// Recorder keeps a history of handled messages.
type Recorder interface {
	Record(ev db.Event) error
}

type Topics struct {
	Set   string
	Armed string
}

// Dispatcher routes inbound messages by topic and acknowledges every handled
// message with a forced status publish.
type Dispatcher struct {
	topics    Topics
	applier   CommandApplier
	engine    SignalHandler
	publisher StatusPublisher
	recorder  Recorder
	now       func() time.Time
}

func New(topics Topics, applier CommandApplier, engine SignalHandler, publisher StatusPublisher, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		topics:    topics,
		applier:   applier,
		engine:    engine,
		publisher: publisher,
		recorder:  recorder,
		now:       time.Now,
	}
}

func (d *Dispatcher) Handle(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case d.topics.Set:
		d.handleCommand(ctx, topic, payload)
	case d.topics.Armed:
		d.handleSignal(ctx, topic, payload)
	default:
		log.Warn().Str("topic", topic).Msg("Ignoring message on unknown topic")
		metrics.Messages.WithLabelValues("unknown", "ignored").Inc()
	}
}

// Tick publishes the periodic status, subject to the publisher's rate limit.
func (d *Dispatcher) Tick() {
	d.publisher.Publish(model.Optional[string]{}, false, false)
}

func (d *Dispatcher) handleCommand(ctx context.Context, topic string, payload []byte) {
	cmd, err := model.ParseCommand(payload)
	if err != nil {
		d.parseFailure(topic, payload, err, "set")
		return
	}

	res := d.applier.Apply(ctx, cmd)
	d.publisher.Publish(cmd.MessageID, true, res.PowerOn)

	outcome := "unchanged"
	if res.StateChanged {
		outcome = "applied"
	}
	metrics.Messages.WithLabelValues("set", outcome).Inc()

	id, _ := cmd.MessageID.Get()
	d.record(db.Event{
		Kind:        db.KindCommand,
		Topic:       topic,
		Outcome:     outcome,
		MessageID:   id,
		Detail:      warningsDetail(res.Warnings, res.TransmitErr),
		Transmitted: res.Transmitted,
	})
}

func (d *Dispatcher) handleSignal(ctx context.Context, topic string, payload []byte) {
	sig, err := model.ParseSignal(payload)
	if err != nil {
		d.parseFailure(topic, payload, err, "armed")
		return
	}

	t := d.engine.Handle(ctx, sig)
	d.publisher.Publish(model.Optional[string]{}, true, false)

	metrics.Messages.WithLabelValues("armed", string(t.Outcome)).Inc()

	detail := ""
	if t.Outcome != automationcontroller.OutcomeNoMatch {
		detail = "armed=" + boolString(t.Armed)
	}
	d.record(db.Event{
		Kind:        db.KindSignal,
		Topic:       topic,
		Outcome:     string(t.Outcome),
		Detail:      detail,
		Transmitted: t.Transmitted,
	})
}

func (d *Dispatcher) parseFailure(topic string, payload []byte, err error, channel string) {
	log.Error().Err(err).Str("topic", topic).Bytes("payload", truncate(payload, 256)).Msg("Dropping unparseable message")
	metrics.Messages.WithLabelValues(channel, "parse_failure").Inc()

	outcome := "malformed"
	if errors.Is(err, model.ErrMissingStatus) {
		outcome = "missing_status"
	}
	d.record(db.Event{Kind: db.KindParseFailure, Topic: topic, Outcome: outcome, Detail: err.Error()})
}

func (d *Dispatcher) record(ev db.Event) {
	if d.recorder == nil {
		return
	}
	ev.At = d.now()
	if err := d.recorder.Record(ev); err != nil {
		log.Warn().Err(err).Str("topic", ev.Topic).Msg("Failed to record event")
	}
}

func warningsDetail(warnings []*model.ValidationError, txErr error) string {
	var parts []string
	for _, w := range warnings {
		parts = append(parts, w.Error())
	}
	if txErr != nil {
		parts = append(parts, "transmit: "+txErr.Error())
	}
	return strings.Join(parts, "; ")
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
