package config

import (
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mager/chromamind/chromamind"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `default:":8080"`
	LogLevel string `split_words:"true" default:"info"`

	DatabaseURL string `split_words:"true"`

	// DeviceURL is the websocket endpoint of the LED device.
	DeviceURL string `split_words:"true" default:"ws://192.168.4.1:81/"`
	// ProfilePath points at an optional YAML device profile.
	ProfilePath string `split_words:"true"`

	WindowSize int `split_words:"true" default:"2048"`
	HopLength  int `split_words:"true" default:"512"`

	PatternEpoch int    `split_words:"true" default:"30"`
	MoodWindow   int    `split_words:"true" default:"30"`
	StepPeriod   int    `split_words:"true" default:"720"`
	Seed         uint64 `default:"1"`
	// Playlist limits pattern selection to these names, comma separated.
	Playlist []string

	ChunkSize      int           `split_words:"true" default:"50"`
	LatencyMargin  float64       `split_words:"true" default:"0.1"`
	ConnectTimeout time.Duration `split_words:"true" default:"5s"`
	SendTimeout    time.Duration `split_words:"true" default:"2s"`
	// MaxMessageSize is the device's receive buffer in bytes. Zero disables the check.
	MaxMessageSize int `split_words:"true" default:"0"`
}

// Load reads the configuration from CHROMAMIND_* environment variables.
func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("chromamind", &cfg)
	return cfg, err
}

func ProvideConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

// LoadProfile reads a YAML device profile. Fields missing from the file keep
// their default values.
func LoadProfile(path string) (chromamind.Profile, error) {
	p := chromamind.DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrap(err, "read device profile")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, errors.Wrapf(err, "parse device profile %s", path)
	}
	if err := p.Validate(); err != nil {
		return p, errors.Wrapf(err, "device profile %s", path)
	}
	return p, nil
}

// ProvideProfile returns the configured device profile, or the default strip
// when no profile file is set.
func ProvideProfile(cfg Config) (chromamind.Profile, error) {
	if cfg.ProfilePath == "" {
		return chromamind.DefaultProfile(), nil
	}
	return LoadProfile(cfg.ProfilePath)
}

var Options = ProvideConfig
