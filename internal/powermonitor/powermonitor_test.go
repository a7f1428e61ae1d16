package powermonitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type MockNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (m *MockNotifier) Send(title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	return nil
}

type step struct {
	on  bool
	err error
}

type scriptedReader struct {
	mu    sync.Mutex
	steps []step
	i     int
}

func (r *scriptedReader) Read() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.i >= len(r.steps) {
		s := r.steps[len(r.steps)-1]
		return s.on, s.err
	}
	s := r.steps[r.i]
	r.i++
	return s.on, s.err
}

var errRead = errors.New("pinctrl: command not found")

func run(steps []step) (*Monitor, *MockNotifier) {
	notifier := &MockNotifier{}
	m := New(&scriptedReader{steps: steps}, notifier, time.Second, 3)
	now := time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)
	for range steps {
		m.poll(now)
		now = now.Add(time.Second)
	}
	return m, notifier
}

func TestMonitor_Scenarios(t *testing.T) {
	tests := []struct {
		name                  string
		steps                 []step
		expectedHealthy       bool
		expectedTransitions   int
		expectedNotifications []string
	}{
		{
			name:                "steady on",
			steps:               []step{{on: true}, {on: true}, {on: true}},
			expectedHealthy:     true,
			expectedTransitions: 0,
		},
		{
			name:                "switched off by remote",
			steps:               []step{{on: true}, {on: true}, {on: false}},
			expectedHealthy:     true,
			expectedTransitions: 1,
		},
		{
			name:                "isolated failures stay healthy",
			steps:               []step{{on: true}, {err: errRead}, {on: true}, {err: errRead}, {err: errRead}, {on: true}},
			expectedHealthy:     true,
			expectedTransitions: 0,
		},
		{
			name:                  "consecutive failures disable",
			steps:                 []step{{on: true}, {err: errRead}, {err: errRead}, {err: errRead}, {err: errRead}},
			expectedHealthy:       false,
			expectedNotifications: []string{"AC Power Sense Failure"},
		},
		{
			name: "recovers after consecutive good reads",
			steps: []step{
				{err: errRead}, {err: errRead}, {err: errRead},
				{on: false}, {on: false}, {on: false},
			},
			expectedHealthy:       true,
			expectedNotifications: []string{"AC Power Sense Failure", "AC Power Sense Recovery"},
		},
		{
			name: "failure during recovery restarts the count",
			steps: []step{
				{err: errRead}, {err: errRead}, {err: errRead},
				{on: true}, {on: true}, {err: errRead}, {on: true}, {on: true},
			},
			expectedHealthy:       false,
			expectedNotifications: []string{"AC Power Sense Failure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, notifier := run(tt.steps)

			assert.Equal(t, tt.expectedHealthy, m.Healthy())
			assert.Equal(t, tt.expectedTransitions, m.Transitions())
			assert.Equal(t, tt.expectedNotifications, notifier.titles)
		})
	}
}

func TestMonitor_HistoryBounded(t *testing.T) {
	steps := make([]step, 50)
	m, _ := run(steps)
	assert.Len(t, m.history, m.historySize)
}

func TestMonitor_LastReading(t *testing.T) {
	m, _ := run([]step{{on: true}, {err: errRead}})

	r, ok := m.LastReading()
	assert.True(t, ok)
	assert.True(t, r.On)
}

func TestMonitor_NilNotifier(t *testing.T) {
	m := New(&scriptedReader{steps: []step{{err: errRead}}}, nil, time.Second, 1)
	assert.NotPanics(t, func() { m.poll(time.Now()) })
	assert.False(t, m.Healthy())
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	m := New(&scriptedReader{steps: []step{{on: true}}}, nil, 5*time.Millisecond, 3)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := m.LastReading()
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
