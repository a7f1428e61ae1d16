package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/config"
)

var writeFile = os.WriteFile

// ServiceUnit renders the systemd unit that runs the controller at boot. When power
// sensing is wired the pin is put into input mode before the controller starts.
func ServiceUnit(cfg *config.Config, binary string) (string, error) {
	configPath, err := filepath.Abs(cfg.ConfigFile)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	dbPath, err := filepath.Abs(cfg.DBPath)
	if err != nil {
		return "", fmt.Errorf("resolve db path: %w", err)
	}

	var pre []string
	if cfg.PowerSense.Pin != nil {
		pre = append(pre, fmt.Sprintf("ExecStartPre=/usr/bin/pinctrl set %d ip pn", *cfg.PowerSense.Pin))
	}

	args := []string{
		binary,
		"-config-file", configPath,
		"-db", dbPath,
		"-log-file", cfg.LogFile,
		"-log-level", cfg.LogLevel.String(),
	}

	var b strings.Builder
	fmt.Fprintf(&b, `[Unit]
Description=AC controller (%s)
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
Environment=PATH=/usr/local/bin:/usr/bin:/bin
`, cfg.DeviceName)
	for _, line := range pre {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, `ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, strings.Join(args, " "))
	return b.String(), nil
}

func InstallService(cfg *config.Config, binary string) error {
	unit, err := ServiceUnit(cfg, binary)
	if err != nil {
		return err
	}
	if err := writeFile(cfg.BootServicePath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("write %s: %w", cfg.BootServicePath, err)
	}
	log.Info().Str("path", cfg.BootServicePath).Msg("Installed systemd unit; run 'systemctl daemon-reload && systemctl enable --now " + filepath.Base(cfg.BootServicePath) + "'")
	return nil
}
