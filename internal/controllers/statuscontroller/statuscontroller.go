package statuscontroller

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/datadog"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type PowerSensor interface {
	PowerOn() bool
}

// Sink delivers a serialized status message to the outward channel.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// Publisher reports the AC state, at most once per interval unless forced.
type Publisher struct {
	state    *model.ACState
	sensor   PowerSensor
	sink     Sink
	topic    string
	interval time.Duration
	now      func() time.Time

	lastPublishAt time.Time

	mu   sync.RWMutex
	last *model.StatusMessage
}

func New(state *model.ACState, sensor PowerSensor, sink Sink, topic string, interval time.Duration) *Publisher {
	return &Publisher{
		state:    state,
		sensor:   sensor,
		sink:     sink,
		topic:    topic,
		interval: interval,
		now:      time.Now,
	}
}

// ResetTimer makes the next unforced Publish go out regardless of when the last one did.
func (p *Publisher) ResetTimer() {
	p.lastPublishAt = time.Time{}
}

// Publish emits the current status. With a message id the reply echoes it and reports
// forcedPowerOn, the value the caller just commanded, instead of the sensed power which
// may not have settled yet. Returns whether a message went out.
func (p *Publisher) Publish(messageID model.Optional[string], force bool, forcedPowerOn bool) bool {
	now := p.now()
	if !force && !p.lastPublishAt.IsZero() && now.Sub(p.lastPublishAt) <= p.interval {
		return false
	}
	p.lastPublishAt = now

	msg := model.StatusMessage{Status: p.state.Snapshot()}
	if id, ok := messageID.Get(); ok {
		msg.MessageID = id
		msg.Status.PowerOn = forcedPowerOn
	} else {
		msg.Status.PowerOn = p.sensor.PowerOn()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal status")
		metrics.StatusPublishes.WithLabelValues("error").Inc()
		return false
	}

	p.mu.Lock()
	p.last = &msg
	p.mu.Unlock()

	p.observe(msg.Status)

	if err := p.sink.Publish(p.topic, payload); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to publish status")
		metrics.StatusPublishes.WithLabelValues("error").Inc()
		return false
	}

	metrics.StatusPublishes.WithLabelValues("ok").Inc()
	log.Debug().Str("topic", p.topic).RawJSON("status", payload).Bool("forced", force).Msg("Status published")
	return true
}

// Last returns the most recent status built by Publish. Safe for use from other goroutines.
func (p *Publisher) Last() (model.StatusMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return model.StatusMessage{}, false
	}
	return *p.last, true
}

func (p *Publisher) observe(s model.State) {
	power := 0.0
	if s.PowerOn {
		power = 1
	}
	metrics.TargetTemperature.Set(float64(s.Temp))
	metrics.PowerOn.Set(power)
	datadog.Gauge("ac.target_temperature", float64(s.Temp), "mode:"+string(s.Mode))
	datadog.Gauge("ac.power_on", power)
}
