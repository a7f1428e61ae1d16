package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/db"
	"github.com/thatsimonsguy/ac-controller/internal/api"
	"github.com/thatsimonsguy/ac-controller/internal/config"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/automationcontroller"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/commandcontroller"
	"github.com/thatsimonsguy/ac-controller/internal/controllers/statuscontroller"
	"github.com/thatsimonsguy/ac-controller/internal/datadog"
	"github.com/thatsimonsguy/ac-controller/internal/dispatcher"
	"github.com/thatsimonsguy/ac-controller/internal/gpio"
	"github.com/thatsimonsguy/ac-controller/internal/irsend"
	"github.com/thatsimonsguy/ac-controller/internal/logging"
	"github.com/thatsimonsguy/ac-controller/internal/model"
	"github.com/thatsimonsguy/ac-controller/internal/mqttbus"
	"github.com/thatsimonsguy/ac-controller/internal/notifications"
	"github.com/thatsimonsguy/ac-controller/internal/powermonitor"
	"github.com/thatsimonsguy/ac-controller/system/shutdown"
	"github.com/thatsimonsguy/ac-controller/system/startup"
)

const (
	loopTick       = time.Second
	inboundQueue   = 32
	connectTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile, cfg.Console)

	if cfg.InstallService {
		binary, err := os.Executable()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve controller binary path")
		}
		if err := startup.InstallService(&cfg, binary); err != nil {
			log.Fatal().Err(err).Msg("Failed to install systemd unit")
		}
		return
	}

	log.Info().
		Str("device", cfg.DeviceName).
		Str("config_file", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Msg("Starting AC controller")

	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED, IR transmissions are logged but not sent")
	}

	sensor := gpio.NewPowerSensor(gpio.Pin{Number: *cfg.PowerSense.Pin, ActiveHigh: cfg.PowerSense.ActiveHigh})
	if err := sensor.ValidateStartup(); err != nil {
		if !cfg.SafeMode {
			log.Fatal().Err(err).Msg("Refusing to start with an unusable power sense pin")
		}
		log.Warn().Err(err).Msg("Power sense pin unusable, continuing in safe mode")
	}

	datadog.InitMetrics(&cfg)
	shutdown.Register("datadog", func() error {
		datadog.Close()
		return nil
	})

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open event history")
	}
	shutdown.Register("db", conn.Close)
	history := db.NewHistory(conn)

	state := model.NewACState(cfg.Limits(), sensor.PowerOn())
	log.Info().
		Bool("power_on", state.Power()).
		Int("temp", state.Temperature()).
		Str("mode", string(state.Mode())).
		Msg("Initial AC state")

	tx := irsend.NewCommandTransmitter(cfg.IR.Command, cfg.IR.Args, time.Duration(cfg.IR.TimeoutSeconds)*time.Second, cfg.SafeMode)

	// a nil *Ntfy must not end up inside a non-nil interface
	var notifier automationcontroller.Notifier
	var monitorNotifier powermonitor.Notifier
	if n := notifications.New(cfg.NtfyTopic); n != nil {
		notifier = n
		monitorNotifier = n
	}
	monitor := powermonitor.New(sensor, monitorNotifier, time.Duration(cfg.PowerSense.PollSeconds)*time.Second, cfg.PowerSense.MaxFailures)

	// the bus needs the loop to deliver into and the publisher needs the bus
	var loop *dispatcher.Loop
	topics := []string{cfg.MQTT.SetTopic}
	if cfg.MQTT.ArmedTopic != "" {
		topics = append(topics, cfg.MQTT.ArmedTopic)
	}
	bus := mqttbus.New(cfg.MQTT, func(topic string, payload []byte) {
		loop.Submit(dispatcher.Message{Topic: topic, Payload: payload})
	}, topics...)

	publisher := statuscontroller.New(state, sensor, bus, cfg.MQTT.GetTopic, time.Duration(cfg.PublishIntervalSeconds)*time.Second)
	applier := commandcontroller.New(state, tx, sensor)
	engine := automationcontroller.New(cfg.Automation, state, tx, sensor, publisher, notifier)
	d := dispatcher.New(dispatcher.Topics{Set: cfg.MQTT.SetTopic, Armed: cfg.MQTT.ArmedTopic}, applier, engine, publisher, history)
	loop = dispatcher.NewLoop(d, inboundQueue, loopTick)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := bus.Connect(connectTimeout); err != nil {
		shutdown.ShutdownWithError(err, "Failed to connect to MQTT broker")
	}
	shutdown.Register("mqtt", func() error {
		bus.Disconnect()
		return nil
	})

	go monitor.Start(ctx)

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	if cfg.APIPort > 0 {
		server := api.NewServer(publisher, loop, history, bus, monitor, cfg.MQTT.SetTopic)
		go func() {
			if err := server.Start(ctx, cfg.APIPort); err != nil {
				log.Error().Err(err).Msg("REST API server stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")
	<-loopDone
	shutdown.Shutdown()
}
