package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ac_controller"

var Registry = prometheus.NewRegistry()

var (
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Inbound messages by channel and outcome.",
	}, []string{"channel", "outcome"})

	ValidationWarnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_warnings_total",
		Help:      "Command fields ignored because their value was invalid.",
	}, []string{"field"})

	Transmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ir_transmissions_total",
		Help:      "IR frames sent, by result.",
	}, []string{"result"})

	AutomationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "automation_outcomes_total",
		Help:      "Armed-signal evaluations by outcome.",
	}, []string{"outcome"})

	StatusPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_publishes_total",
		Help:      "Status messages emitted, by result.",
	}, []string{"result"})

	TargetTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "target_temperature_celsius",
		Help:      "Commanded target temperature.",
	})

	PowerOn = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "power_on",
		Help:      "1 when the last published status reported the unit on.",
	})

	PowerSenseReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "power_sense_reads_total",
		Help:      "Background power sense polls, by result.",
	}, []string{"result"})

	PowerSenseHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "power_sense_healthy",
		Help:      "0 while the power sense pin is failing.",
	})
)

func init() {
	Registry.MustRegister(
		Messages,
		ValidationWarnings,
		Transmissions,
		AutomationOutcomes,
		StatusPublishes,
		TargetTemperature,
		PowerOn,
		PowerSenseReads,
		PowerSenseHealthy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
