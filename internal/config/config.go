package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gpsdxo-mon/internal/gpsdxo"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	History HistoryConfig `yaml:"history"`
	UI      UIConfig      `yaml:"ui"`
	Web     WebConfig     `yaml:"web"`
	Record  RecordConfig  `yaml:"record"`
	Replay  ReplayConfig  `yaml:"replay"`
}

type DeviceConfig struct {
	// Path is the serial device, e.g. /dev/ttyUSB0. The CLI positional
	// argument overrides it.
	Path string `yaml:"path"`
	Baud int    `yaml:"baud"`
	// ReadBuffer is the size of each transport read.
	ReadBuffer int `yaml:"read_buffer"`
}

type HistoryConfig struct {
	// Capacity is the number of samples kept per metric.
	Capacity int `yaml:"capacity"`
	// Window is the span shown by charts.
	Window time.Duration `yaml:"window"`
}

type UIConfig struct {
	Refresh  time.Duration `yaml:"refresh"`
	Headless bool          `yaml:"headless"`
	LogFile  string        `yaml:"log_file"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

// Default returns a validated configuration with every default applied.
func Default() Config {
	var cfg Config
	_ = applyDefaults(&cfg)
	return cfg
}

// Load reads a YAML config file. Unknown fields are rejected. The device
// path is not required here since the CLI usually supplies it; call
// DefaultAndValidate once every override has been applied.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, describeDecodeError(err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate applies defaults and checks the complete configuration.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := applyDefaults(cfg); err != nil {
		return err
	}
	if !cfg.Replay.Enable && strings.TrimSpace(cfg.Device.Path) == "" {
		return fmt.Errorf("device.path is required")
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	cfg.Device.Path = strings.TrimSpace(cfg.Device.Path)
	if cfg.Device.Baud == 0 {
		cfg.Device.Baud = 115200
	}
	if !gpsdxo.BaudSupported(cfg.Device.Baud) {
		return fmt.Errorf("device.baud %d is not supported", cfg.Device.Baud)
	}
	if cfg.Device.ReadBuffer <= 0 {
		cfg.Device.ReadBuffer = 4096
	}

	if cfg.History.Capacity < 0 {
		return fmt.Errorf("history.capacity must be > 0")
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = 300
	}
	if cfg.History.Window < 0 {
		return fmt.Errorf("history.window must be > 0")
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = 300 * time.Second
	}

	if cfg.UI.Refresh < 0 {
		return fmt.Errorf("ui.refresh must be > 0")
	}
	if cfg.UI.Refresh == 0 {
		cfg.UI.Refresh = 100 * time.Millisecond
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}

	if cfg.Record.Enable && strings.TrimSpace(cfg.Record.Path) == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Replay.Enable {
		if strings.TrimSpace(cfg.Replay.Path) == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}
	return nil
}

var yamlLinePrefix = regexp.MustCompile(`^line \d+: `)

func describeDecodeError(err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return err
	}
	var unknown []string
	for _, e := range te.Errors {
		msg := yamlLinePrefix.ReplaceAllString(e, "")
		if strings.Contains(msg, "not found in type") {
			unknown = append(unknown, msg)
		}
	}
	if len(unknown) == 0 {
		return err
	}
	return fmt.Errorf("config contains unknown fields: %s", strings.Join(unknown, "; "))
}
