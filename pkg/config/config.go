// Package config loads the isosceles configuration file.
//
// Example isosceles.yaml:
//
//	applet:
//	  aid: 49534F5343454C455301
//	  master_file_capacity: 8
//	  get_data: true
//	transport:
//	  reader: ""          # empty: simulated card
//	  max_chunk_size: 255
//	image: card.img
//	log:
//	  level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gregLibert/isosceles/pkg/applet"
	"github.com/gregLibert/isosceles/pkg/cardfs"
	"github.com/gregLibert/isosceles/pkg/tlv"
)

// EnvVar names the environment variable holding the configuration path.
const EnvVar = "ISOSCELES_CONFIG"

// DefaultAID is "ISOSCELES" followed by version byte 01.
const DefaultAID = "49534F5343454C455301"

// Config is the root of the configuration file.
type Config struct {
	Applet AppletConfig `yaml:"applet"`

	Transport TransportConfig `yaml:"transport"`

	// Image is the card image loaded before and saved after a simulator
	// session. Empty disables persistence.
	Image string `yaml:"image"`

	Log LogConfig `yaml:"log"`
}

// AppletConfig holds install-time applet settings.
type AppletConfig struct {
	// AID is the application identifier in hex.
	AID string `yaml:"aid"`

	MasterFileCapacity int `yaml:"master_file_capacity"`

	GetData bool `yaml:"get_data"`
}

// TransportConfig selects between a PC/SC reader and the simulator.
type TransportConfig struct {
	// Reader is the PC/SC reader name. Empty runs the simulator.
	Reader string `yaml:"reader"`

	// MaxChunkSize bounds body chunks delivered by the simulator.
	MaxChunkSize int `yaml:"max_chunk_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Applet: AppletConfig{
			AID:                DefaultAID,
			MasterFileCapacity: applet.DefaultMasterFileCapacity,
		},
		Transport: TransportConfig{
			MaxChunkSize: 255,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by ISOSCELES_CONFIG, or returns Default when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults. Unknown keys are errors.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if aid, err := c.AIDBytes(); err != nil {
		errs = append(errs, err)
	} else if len(aid) > applet.MaxAIDLength {
		errs = append(errs, fmt.Errorf("applet.aid is %d bytes, maximum is %d", len(aid), applet.MaxAIDLength))
	}

	if c.Applet.MasterFileCapacity < 1 || c.Applet.MasterFileCapacity > cardfs.MaxObjects {
		errs = append(errs, fmt.Errorf("applet.master_file_capacity must be in [1, %d], got %d", cardfs.MaxObjects, c.Applet.MasterFileCapacity))
	}

	if c.Transport.MaxChunkSize < 1 {
		errs = append(errs, fmt.Errorf("transport.max_chunk_size must be positive, got %d", c.Transport.MaxChunkSize))
	}

	if c.Image != "" && c.Transport.Reader != "" {
		errs = append(errs, fmt.Errorf("image persistence needs the simulator; unset transport.reader"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// AIDBytes decodes applet.aid.
func (c *Config) AIDBytes() ([]byte, error) {
	aid, err := tlv.ParseHex(c.Applet.AID)
	if err != nil {
		return nil, fmt.Errorf("applet.aid: %w", err)
	}
	return aid, nil
}

// LogLevel parses log.level (debug, info, warn, error).
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// AppletOptions returns the install options described by the configuration.
func (c *Config) AppletOptions(logger *slog.Logger) applet.Options {
	return applet.Options{
		MasterFileCapacity: c.Applet.MasterFileCapacity,
		GetData:            c.Applet.GetData,
		Logger:             logger,
	}
}
