package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrQueueFull = errors.New("inbound queue full")

type Message struct {
	Topic   string
	Payload []byte
}

// Loop is the only goroutine that touches the AC state. Everything else hands it
// messages through Submit.
type Loop struct {
	dispatcher *Dispatcher
	inbound    chan Message
	tick       time.Duration
}

func NewLoop(d *Dispatcher, queueSize int, tick time.Duration) *Loop {
	return &Loop{
		dispatcher: d,
		inbound:    make(chan Message, queueSize),
		tick:       tick,
	}
}

// Submit enqueues a message without blocking the caller.
func (l *Loop) Submit(msg Message) error {
	select {
	case l.inbound <- msg:
		return nil
	default:
		log.Warn().Str("topic", msg.Topic).Msg("Inbound queue full, dropping message")
		return ErrQueueFull
	}
}

// Run handles queued messages and periodic status ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	log.Info().Dur("tick", l.tick).Msg("Control loop started")
	l.dispatcher.Tick()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Control loop stopped")
			return
		case msg := <-l.inbound:
			l.dispatcher.Handle(ctx, msg.Topic, msg.Payload)
		case <-ticker.C:
			l.dispatcher.Tick()
		}
	}
}
