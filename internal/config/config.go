// Package config loads mixdeck configuration from a YAML file and MIXDECK_*
// environment variables. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MIXDECK_VOLUME_STEP.
const EnvPrefix = "MIXDECK"

// Audio backends.
const (
	BackendPulse  = "pulse"
	BackendMemory = "memory"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig   `mapstructure:"log"`
	Volume    PollConfig  `mapstructure:"volume"`
	AppVolume PollConfig  `mapstructure:"app_volume"`
	GIF       GIFConfig   `mapstructure:"gif"`
	Audio     AudioConfig `mapstructure:"audio"`
	Deck      DeckConfig  `mapstructure:"deck"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// PollConfig configures a polling volume action.
type PollConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Step         int           `mapstructure:"step"`
}

type GIFConfig struct {
	Folder         string        `mapstructure:"folder"`
	SwitchInterval time.Duration `mapstructure:"switch_interval"`
	DefaultDelay   time.Duration `mapstructure:"default_delay"`
}

type AudioConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeckConfig lays out actions on a directly attached device.
type DeckConfig struct {
	Brightness int    `mapstructure:"brightness"`
	Keys       []Slot `mapstructure:"keys"`
	Dials      []Slot `mapstructure:"dials"`
}

// Slot places one action. Action is the action name ("volume",
// "app_volume", "gif"); an empty Action leaves the slot blank.
type Slot struct {
	Action   string         `mapstructure:"action" yaml:"action"`
	Settings map[string]any `mapstructure:"settings" yaml:"settings,omitempty"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "mixdeck")
}

// DefaultConfigPath returns the config file path, honoring MIXDECK_CONFIG.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultGIFFolder is static/gifs next to the executable.
func DefaultGIFFolder() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("static", "gifs")
	}
	return filepath.Join(filepath.Dir(exe), "static", "gifs")
}

// LogFile returns the plugin log path in the XDG data directory, creating
// its parent.
func LogFile() (string, error) {
	return xdg.DataFile("mixdeck/plugin.log")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: "info"},
		Volume:    PollConfig{PollInterval: 200 * time.Millisecond, Step: 5},
		AppVolume: PollConfig{PollInterval: 300 * time.Millisecond, Step: 5},
		GIF: GIFConfig{
			Folder:         DefaultGIFFolder(),
			SwitchInterval: 30 * time.Second,
			DefaultDelay:   100 * time.Millisecond,
		},
		Audio: AudioConfig{Backend: BackendPulse, Timeout: 2 * time.Second},
		Deck: DeckConfig{
			Brightness: 60,
			Keys:       []Slot{{Action: "volume"}, {Action: "gif"}},
			Dials:      []Slot{{Action: "volume"}},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("volume.poll_interval", d.Volume.PollInterval)
	v.SetDefault("volume.step", d.Volume.Step)
	v.SetDefault("app_volume.poll_interval", d.AppVolume.PollInterval)
	v.SetDefault("app_volume.step", d.AppVolume.Step)
	v.SetDefault("gif.folder", d.GIF.Folder)
	v.SetDefault("gif.switch_interval", d.GIF.SwitchInterval)
	v.SetDefault("gif.default_delay", d.GIF.DefaultDelay)
	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.timeout", d.Audio.Timeout)
	v.SetDefault("deck.brightness", d.Deck.Brightness)
	v.SetDefault("deck.keys", slotMaps(d.Deck.Keys))
	v.SetDefault("deck.dials", slotMaps(d.Deck.Dials))
}

func slotMaps(slots []Slot) []map[string]any {
	out := make([]map[string]any, len(slots))
	for i, s := range slots {
		out[i] = map[string]any{"action": s.Action, "settings": s.Settings}
	}
	return out
}

// Load reads DefaultConfigPath. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFile(DefaultConfigPath())
}

// LoadFile reads the config at path, layering in defaults and environment
// overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no action can run with.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range map[string]PollConfig{"volume": c.Volume, "app_volume": c.AppVolume} {
		if p.PollInterval <= 0 {
			errs = append(errs, fmt.Errorf("%s.poll_interval must be positive", name))
		}
		if p.Step <= 0 || p.Step > 100 {
			errs = append(errs, fmt.Errorf("%s.step must be in 1..100", name))
		}
	}
	if c.GIF.SwitchInterval <= 0 {
		errs = append(errs, errors.New("gif.switch_interval must be positive"))
	}
	if c.GIF.DefaultDelay <= 0 {
		errs = append(errs, errors.New("gif.default_delay must be positive"))
	}
	switch c.Audio.Backend {
	case BackendPulse, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of %s, %s", c.Audio.Backend, BackendPulse, BackendMemory))
	}
	if c.Deck.Brightness < 0 || c.Deck.Brightness > 100 {
		errs = append(errs, errors.New("deck.brightness must be in 0..100"))
	}
	return errors.Join(errs...)
}

// file is the on-disk form, with durations written as strings.
type file struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Volume    filePoll `yaml:"volume"`
	AppVolume filePoll `yaml:"app_volume"`
	GIF       struct {
		Folder         string `yaml:"folder"`
		SwitchInterval string `yaml:"switch_interval"`
		DefaultDelay   string `yaml:"default_delay"`
	} `yaml:"gif"`
	Audio struct {
		Backend string `yaml:"backend"`
		Timeout string `yaml:"timeout"`
	} `yaml:"audio"`
	Deck struct {
		Brightness int    `yaml:"brightness"`
		Keys       []Slot `yaml:"keys"`
		Dials      []Slot `yaml:"dials"`
	} `yaml:"deck"`
}

type filePoll struct {
	PollInterval string `yaml:"poll_interval"`
	Step         int    `yaml:"step"`
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var f file
	f.Log.Level = cfg.Log.Level
	f.Log.Pretty = cfg.Log.Pretty
	f.Volume = filePoll{PollInterval: cfg.Volume.PollInterval.String(), Step: cfg.Volume.Step}
	f.AppVolume = filePoll{PollInterval: cfg.AppVolume.PollInterval.String(), Step: cfg.AppVolume.Step}
	f.GIF.Folder = cfg.GIF.Folder
	f.GIF.SwitchInterval = cfg.GIF.SwitchInterval.String()
	f.GIF.DefaultDelay = cfg.GIF.DefaultDelay.String()
	f.Audio.Backend = cfg.Audio.Backend
	f.Audio.Timeout = cfg.Audio.Timeout.String()
	f.Deck.Brightness = cfg.Deck.Brightness
	f.Deck.Keys = cfg.Deck.Keys
	f.Deck.Dials = cfg.Deck.Dials

	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteConfigFile writes cfg to DefaultConfigPath.
func WriteConfigFile(cfg *Config) error {
	return WriteFile(DefaultConfigPath(), cfg)
}

// WriteFile writes cfg to path, creating its directory.
func WriteFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
