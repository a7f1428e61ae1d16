package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/ac-controller/internal/model"
)

type MQTT struct {
	Broker            string `json:"broker"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	SetTopic          string `json:"set_topic"`
	GetTopic          string `json:"get_topic"`
	ArmedTopic        string `json:"armed_topic"`
	AvailabilityTopic string `json:"availability_topic"`
	QoS               byte   `json:"qos"`
}

type PowerSense struct {
	Pin         *int `json:"pin"`
	ActiveHigh  bool `json:"active_high"`
	PollSeconds int  `json:"poll_seconds"`
	MaxFailures int  `json:"max_failures"`
}

type IR struct {
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// Profile is the state applied when the armed signal flips.
type Profile struct {
	PowerOn bool       `json:"power_on"`
	Temp    int        `json:"temp"`
	Mode    model.Mode `json:"mode"`
}

type ProfilePair struct {
	Armed    *Profile `json:"armed"`
	Disarmed *Profile `json:"disarmed"`
}

type Automation struct {
	Enabled     bool                   `json:"enabled"`
	TriggerArea string                 `json:"trigger_area"`
	Profiles    map[string]ProfilePair `json:"profiles"` // keyed by mode family: "heat", "cool"
}

type Config struct {
	ConfigFile     string
	DBPath         string
	LogFile        string
	LogLevel       zerolog.Level
	Console        bool
	InstallService bool

	DeviceName             string     `json:"device_name"`
	MQTT                   MQTT       `json:"mqtt"`
	PublishIntervalSeconds int        `json:"publish_interval_seconds"`
	MinTemp                int        `json:"min_temp"`
	MaxTemp                int        `json:"max_temp"`
	FanLevels              int        `json:"fan_levels"`
	PowerSense             PowerSense `json:"power_sense"`
	IR                     IR         `json:"ir"`
	Automation             Automation `json:"automation"`
	SafeMode               bool       `json:"safe_mode"`

	APIPort int `json:"api_port"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic       string `json:"ntfy_topic"`
	BootServicePath string `json:"boot_service_path"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.DBPath, "db", "data/ac.db", "Path to the SQLite event history")
	flag.StringVar(&cfg.LogFile, "log-file", "/var/log/ac-controller.log", "Path to log file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Console, "console", false, "Also log to stderr")
	flag.BoolVar(&cfg.InstallService, "install-service", false, "Write the systemd unit and exit")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := cfg.decode(file); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func (cfg *Config) decode(r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func (cfg *Config) applyDefaults() {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "ac-controller"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.DeviceName
	}
	if cfg.MQTT.AvailabilityTopic == "" && cfg.MQTT.GetTopic != "" {
		cfg.MQTT.AvailabilityTopic = cfg.MQTT.GetTopic + "/availability"
	}
	if cfg.PublishIntervalSeconds == 0 {
		cfg.PublishIntervalSeconds = 30
	}
	if cfg.MinTemp == 0 && cfg.MaxTemp == 0 {
		cfg.MinTemp = model.DaikinLimits.MinTemp
		cfg.MaxTemp = model.DaikinLimits.MaxTemp
	}
	if cfg.FanLevels == 0 {
		cfg.FanLevels = model.DaikinLimits.FanLevels
	}
	if cfg.PowerSense.PollSeconds == 0 {
		cfg.PowerSense.PollSeconds = 10
	}
	if cfg.PowerSense.MaxFailures == 0 {
		cfg.PowerSense.MaxFailures = 3
	}
	if cfg.IR.TimeoutSeconds == 0 {
		cfg.IR.TimeoutSeconds = 5
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.BootServicePath == "" {
		cfg.BootServicePath = "/etc/systemd/system/ac-controller.service"
	}
}

// Limits returns the unit bounds the core clamps and validates against.
func (cfg *Config) Limits() model.Limits {
	return model.Limits{MinTemp: cfg.MinTemp, MaxTemp: cfg.MaxTemp, FanLevels: cfg.FanLevels}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.MQTT.Broker == "" {
		problems = append(problems, "mqtt.broker is required")
	}
	if cfg.MQTT.SetTopic == "" || cfg.MQTT.GetTopic == "" {
		problems = append(problems, "mqtt.set_topic and mqtt.get_topic are required")
	}
	if cfg.MQTT.QoS > 2 {
		problems = append(problems, fmt.Sprintf("mqtt.qos must be 0, 1 or 2 (got %d)", cfg.MQTT.QoS))
	}
	if cfg.MinTemp >= cfg.MaxTemp {
		problems = append(problems, fmt.Sprintf("min_temp (%d) must be below max_temp (%d)", cfg.MinTemp, cfg.MaxTemp))
	}
	if cfg.FanLevels < 2 {
		problems = append(problems, "fan_levels must be at least 2")
	}
	if cfg.PowerSense.Pin == nil {
		problems = append(problems, "power_sense.pin is required")
	}
	if cfg.IR.Command == "" && !cfg.SafeMode {
		problems = append(problems, "ir.command is required unless safe_mode is set")
	}

	problems = append(problems, cfg.validateAutomation()...)

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}

func (cfg *Config) validateAutomation() []string {
	var problems []string
	a := cfg.Automation

	if a.Enabled && a.TriggerArea == "" {
		problems = append(problems, "automation.trigger_area is required when automation is enabled")
	}
	if a.Enabled && cfg.MQTT.ArmedTopic == "" {
		problems = append(problems, "mqtt.armed_topic is required when automation is enabled")
	}

	for family, pair := range a.Profiles {
		if family != string(model.ModeHeat) && family != string(model.ModeCool) {
			problems = append(problems, fmt.Sprintf("automation.profiles.%s: only heat and cool profiles are supported", family))
			continue
		}
		for state, p := range map[string]*Profile{"armed": pair.Armed, "disarmed": pair.Disarmed} {
			path := fmt.Sprintf("automation.profiles.%s.%s", family, state)
			if p == nil {
				problems = append(problems, path+" is missing")
				continue
			}
			if !p.PowerOn {
				continue
			}
			if !p.Mode.Valid() {
				problems = append(problems, fmt.Sprintf("%s.mode %q is not a valid mode", path, p.Mode))
			} else if state == "armed" && string(p.Mode) != family {
				// disarm compares against the armed profile of the family the unit is in
				problems = append(problems, fmt.Sprintf("%s.mode %q must match its family %q", path, p.Mode, family))
			}
			if p.Temp < cfg.MinTemp || p.Temp > cfg.MaxTemp {
				problems = append(problems, fmt.Sprintf("%s.temp %d outside %d..%d", path, p.Temp, cfg.MinTemp, cfg.MaxTemp))
			}
		}
	}
	return problems
}
