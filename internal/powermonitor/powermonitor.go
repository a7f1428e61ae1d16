package powermonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/datadog"
	"github.com/thatsimonsguy/ac-controller/internal/metrics"
)

type Reader interface {
	Read() (bool, error)
}

type Notifier interface {
	Send(title, message string) error
}

type Reading struct {
	On        bool
	Timestamp time.Time
	Valid     bool
}

// Monitor polls the power sense input in the background. It never touches the AC
// state; it only tracks whether the sensor can be trusted and when the unit was
// switched outside the controller (e.g. with the handheld remote).
type Monitor struct {
	reader      Reader
	notifier    Notifier
	interval    time.Duration
	maxFailures int
	historySize int

	mutex          sync.RWMutex
	history        []Reading
	lastGood       Reading
	failureCount   int
	recoveryCount  int
	disabled       bool
	disabledAt     time.Time
	transitions    int
	lastTransition time.Time
}

func New(reader Reader, notifier Notifier, interval time.Duration, maxFailures int) *Monitor {
	return &Monitor{
		reader:      reader,
		notifier:    notifier,
		interval:    interval,
		maxFailures: maxFailures,
		historySize: 20,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.poll(now)
		}
	}
}

func (m *Monitor) poll(now time.Time) {
	on, err := m.reader.Read()
	m.process(Reading{On: on, Timestamp: now, Valid: err == nil}, err)
}

func (m *Monitor) process(r Reading, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.addToHistory(r)

	if !r.Valid {
		metrics.PowerSenseReads.WithLabelValues("error").Inc()
		m.recoveryCount = 0
		m.failureCount++
		log.Warn().Err(err).Int("failures", m.failureCount).Msg("Power sense read failed")
		m.checkDisableThreshold(r.Timestamp, err)
		return
	}

	metrics.PowerSenseReads.WithLabelValues("ok").Inc()
	m.failureCount = 0

	if m.disabled {
		m.recoveryCount++
		if m.recoveryCount < m.maxFailures {
			return
		}
		m.disabled = false
		m.recoveryCount = 0
		metrics.PowerSenseHealthy.Set(1)
		log.Info().Dur("down_for", r.Timestamp.Sub(m.disabledAt)).Msg("Power sense recovered")
		m.send("AC Power Sense Recovery", fmt.Sprintf("Power sense readable again, unit is %s", onOff(r.On)))
	} else {
		metrics.PowerSenseHealthy.Set(1)
	}

	if m.lastGood.Valid && m.lastGood.On != r.On {
		m.transitions++
		m.lastTransition = r.Timestamp
		log.Info().Str("power", onOff(r.On)).Msg("Unit power changed")
		datadog.Gauge("ac.sensed_power", boolGauge(r.On))
	}
	m.lastGood = r
}

func (m *Monitor) checkDisableThreshold(now time.Time, err error) {
	if m.failureCount < m.maxFailures || m.disabled {
		return
	}
	m.disabled = true
	m.disabledAt = now
	metrics.PowerSenseHealthy.Set(0)

	last := "never read"
	if m.lastGood.Valid {
		last = fmt.Sprintf("%s at %s", onOff(m.lastGood.On), m.lastGood.Timestamp.Format(time.Kitchen))
	}
	log.Error().Err(err).Int("failures", m.failureCount).Msg("Power sense failing, automation will treat the unit as off")
	m.send("AC Power Sense Failure", fmt.Sprintf("%d failed reads (%v), last good: %s", m.failureCount, err, last))
}

func (m *Monitor) addToHistory(r Reading) {
	if len(m.history) >= m.historySize {
		m.history = m.history[1:]
	}
	m.history = append(m.history, r)
}

func (m *Monitor) send(title, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(title, message); err != nil {
		log.Error().Err(err).Msg("Failed to send power sense notification")
	}
}

// Healthy reports whether the sensor is currently trusted.
func (m *Monitor) Healthy() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return !m.disabled
}

// LastReading returns the most recent successful reading.
func (m *Monitor) LastReading() (Reading, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.lastGood, m.lastGood.Valid
}

func (m *Monitor) Transitions() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.transitions
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
