package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/carlosprados/pmcontrol/internal/validate"
)

// Settings configure the supervisor daemon.
type Settings struct {
	BasePath     string `toml:"base_path"`
	DataPath     string `toml:"data_path"`
	ConfigPath   string `toml:"config_path"`
	RestartDelay string `toml:"restart_delay"`
	LogLevel     string `toml:"log_level"`
	LogFile      string `toml:"log_file"`
	HTTPAddr     string `toml:"http_addr"`
	OpenFiles    uint64 `toml:"open_files"`
	Events       Events `toml:"events"`
}

// Events selects the optional broker publishers.
type Events struct {
	NATSURL    string `toml:"nats_url"`
	MQTTBroker string `toml:"mqtt_broker"`
	Subject    string `toml:"subject"`
}

func Defaults() Settings {
	return Settings{
		RestartDelay: "30s",
		LogLevel:     "info",
		HTTPAddr:     "127.0.0.1:8089",
		Events:       Events{Subject: "pmcontrol.agent"},
	}
}

// Delay parses RestartDelay.
func (s Settings) Delay() (time.Duration, error) {
	d, err := time.ParseDuration(s.RestartDelay)
	if err != nil {
		return 0, fmt.Errorf("restart_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("restart_delay: negative duration %s", d)
	}
	return d, nil
}

// Load reads settings from a TOML file on top of Defaults, then applies
// PMCONTROL_* environment overrides. An empty path skips the file.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return s, err
		}
		var generic map[string]any
		if err := toml.Unmarshal(b, &generic); err != nil {
			return s, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := validate.SettingsMap(generic); err != nil {
			return s, fmt.Errorf("invalid settings %s: %w", path, err)
		}
		if err := toml.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := applyEnv(&s); err != nil {
		return s, err
	}
	if _, err := s.Delay(); err != nil {
		return s, err
	}
	return s, nil
}

func applyEnv(s *Settings) error {
	strs := map[string]*string{
		"PMCONTROL_BASE_PATH":      &s.BasePath,
		"PMCONTROL_DATA_PATH":      &s.DataPath,
		"PMCONTROL_CONFIG_PATH":    &s.ConfigPath,
		"PMCONTROL_RESTART_DELAY":  &s.RestartDelay,
		"PMCONTROL_LOG_LEVEL":      &s.LogLevel,
		"PMCONTROL_LOG_FILE":       &s.LogFile,
		"PMCONTROL_HTTP_ADDR":      &s.HTTPAddr,
		"PMCONTROL_NATS_URL":       &s.Events.NATSURL,
		"PMCONTROL_MQTT_BROKER":    &s.Events.MQTTBroker,
		"PMCONTROL_EVENTS_SUBJECT": &s.Events.Subject,
	}
	for k, dst := range strs {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PMCONTROL_OPEN_FILES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PMCONTROL_OPEN_FILES: %w", err)
		}
		s.OpenFiles = n
	}
	return nil
}
