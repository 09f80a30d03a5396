// Package config loads the simulator configuration.
//
// Configuration comes from a single file named by the --config flag or the
// GATT_DISPATCH_CONFIG environment variable. The format follows the file
// extension: .yaml/.yml or .toml. Keys missing from the file keep their
// Default() value; unknown keys are an error.
package config

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/user/gatt-dispatch/logger"
	"github.com/user/gatt-dispatch/wire"
	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/notify"
)

// ConfigEnv names the environment variable holding the config file path
const ConfigEnv = "GATT_DISPATCH_CONFIG"

// Config is the complete simulator configuration
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// DataDir overrides GATT_DISPATCH_DIR for bonds and debug logs.
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// Debug writes per connection JSONL logs and frame captures.
	Debug bool `yaml:"debug" toml:"debug"`

	Device     DeviceConfig     `yaml:"device" toml:"device"`
	Link       LinkConfig       `yaml:"link" toml:"link"`
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Services   []ServiceConfig  `yaml:"services" toml:"services"`
}

// DeviceConfig fills the Generic Access service
type DeviceConfig struct {
	Name       string `yaml:"name" toml:"name"`
	Appearance uint16 `yaml:"appearance" toml:"appearance"`
}

// LinkConfig configures every connection
type LinkConfig struct {
	// IntervalMS is rounded down to the 1.25ms grid.
	IntervalMS            float64 `yaml:"interval_ms" toml:"interval_ms"`
	PeripheralLatency     uint16  `yaml:"peripheral_latency" toml:"peripheral_latency"`
	SupervisionTimeoutMS  int     `yaml:"supervision_timeout_ms" toml:"supervision_timeout_ms"`
	ConfirmationTimeoutMS int     `yaml:"confirmation_timeout_ms" toml:"confirmation_timeout_ms"`
	MTU                   int     `yaml:"mtu" toml:"mtu"`
	HopIncrement          uint    `yaml:"hop_increment" toml:"hop_increment"`

	// ConfirmationScope is "connection" or "tier".
	ConfirmationScope string `yaml:"confirmation_scope" toml:"confirmation_scope"`
}

// SimulationConfig configures the simulated radio
type SimulationConfig struct {
	PacketLossRate float64 `yaml:"packet_loss_rate" toml:"packet_loss_rate"`
	Seed           int64   `yaml:"seed" toml:"seed"`
	Deterministic  bool    `yaml:"deterministic" toml:"deterministic"`
	ClientMTU      int     `yaml:"client_mtu" toml:"client_mtu"`
}

// ServiceConfig declares one primary service
type ServiceConfig struct {
	UUID            string                 `yaml:"uuid" toml:"uuid"`
	Characteristics []CharacteristicConfig `yaml:"characteristics" toml:"characteristics"`
}

// CharacteristicConfig declares one characteristic
type CharacteristicConfig struct {
	UUID     string `yaml:"uuid" toml:"uuid"`
	Name     string `yaml:"name" toml:"name"`
	Read     bool   `yaml:"read" toml:"read"`
	Write    bool   `yaml:"write" toml:"write"`
	Notify   bool   `yaml:"notify" toml:"notify"`
	Indicate bool   `yaml:"indicate" toml:"indicate"`
	Priority int    `yaml:"priority" toml:"priority"`

	// Value is the initial value in hex.
	Value string `yaml:"value" toml:"value"`
}

// Default returns a heart rate sensor with a control point and a battery level
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Name:       "gatt-dispatch",
			Appearance: 0x0341, // heart rate sensor
		},
		Link: LinkConfig{
			IntervalMS:            30,
			SupervisionTimeoutMS:  6000,
			ConfirmationTimeoutMS: int(wire.DefaultLinkConfig().ConfirmationTimeout / time.Millisecond),
			MTU:                   wire.MaxMTU,
			HopIncrement:          wire.DefaultHopIncrement,
			ConfirmationScope:     notify.ScopeConnection.String(),
		},
		Simulation: SimulationConfig{
			PacketLossRate: 0.015,
			ClientMTU:      185,
		},
		Services: []ServiceConfig{
			{
				UUID: "180D",
				Characteristics: []CharacteristicConfig{
					{UUID: "2A37", Name: "heart-rate", Read: true, Notify: true, Priority: 1, Value: "0000"},
					{UUID: "2A39", Name: "control-point", Write: true, Notify: true, Indicate: true, Priority: 0},
				},
			},
			{
				UUID: "180F",
				Characteristics: []CharacteristicConfig{
					{UUID: "2A19", Name: "battery", Read: true, Notify: true, Priority: 2, Value: "64"},
				},
			},
		},
	}
}

// Path returns the config file to load: the flag value, else GATT_DISPATCH_CONFIG.
// An empty result means the built-in default.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(ConfigEnv)
}

// Load reads path over Default() and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
		}
	default:
		return nil, errors.Errorf("config: unsupported file extension %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.LinkConfig(); err != nil {
		return err
	}
	if r := c.Simulation.PacketLossRate; r < 0 || r >= 1 {
		return errors.Errorf("simulation.packet_loss_rate must be in [0, 1): %v", r)
	}
	if _, err := c.GATTServices(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.INFO
	}
	return level
}

// LinkConfig converts the link section
func (c *Config) LinkConfig() (wire.LinkConfig, error) {
	scope, err := notify.ParseScope(c.Link.ConfirmationScope)
	if err != nil {
		return wire.LinkConfig{}, errors.Wrap(err, "link.confirmation_scope")
	}

	lc := wire.DefaultLinkConfig()
	lc.Params = wire.ConnectionParametersFromDurations(
		time.Duration(c.Link.IntervalMS*float64(time.Millisecond)),
		time.Duration(c.Link.SupervisionTimeoutMS)*time.Millisecond,
		c.Link.PeripheralLatency,
	)
	lc.ConfirmationTimeout = time.Duration(c.Link.ConfirmationTimeoutMS) * time.Millisecond
	lc.MTU = c.Link.MTU
	lc.HopIncrement = c.Link.HopIncrement
	lc.Scope = scope
	lc.Debug = c.Debug

	if err := lc.Validate(); err != nil {
		return wire.LinkConfig{}, errors.Wrap(err, "link")
	}
	return lc, nil
}

// SimulationConfig converts the simulation section
func (c *Config) SimulationConfig() *wire.SimulationConfig {
	sc := wire.DefaultSimulationConfig()
	sc.PacketLossRate = c.Simulation.PacketLossRate
	sc.Seed = c.Simulation.Seed
	sc.Deterministic = c.Simulation.Deterministic
	if c.Simulation.ClientMTU > 0 {
		sc.DefaultMTU = c.Simulation.ClientMTU
	}
	return sc
}

// GATTServices returns Generic Access, Generic Attribute and the configured services
func (c *Config) GATTServices() ([]gatt.Service, error) {
	services := []gatt.Service{
		gatt.NewGenericAccessService(c.Device.Name, c.Device.Appearance),
		gatt.NewGenericAttributeService(),
	}

	for i, sc := range c.Services {
		uuid, err := gatt.ParseUUID(sc.UUID)
		if err != nil {
			return nil, errors.Wrapf(err, "services[%d]", i)
		}
		service := gatt.Service{UUID: uuid, Primary: true}

		for j, cc := range sc.Characteristics {
			char, err := cc.characteristic()
			if err != nil {
				return nil, errors.Wrapf(err, "services[%d].characteristics[%d]", i, j)
			}
			service.Characteristics = append(service.Characteristics, char)
		}
		services = append(services, service)
	}

	// duplicate UUIDs and bad priorities surface while building the table
	if _, err := gatt.BuildAttributeDatabase(services); err != nil {
		return nil, errors.Wrap(err, "services")
	}
	return services, nil
}

func (cc CharacteristicConfig) characteristic() (gatt.Characteristic, error) {
	uuid, err := gatt.ParseUUID(cc.UUID)
	if err != nil {
		return gatt.Characteristic{}, err
	}

	value, err := hex.DecodeString(cc.Value)
	if err != nil {
		return gatt.Characteristic{}, errors.Wrapf(err, "value of %s", cc.UUID)
	}

	if cc.Priority < 0 || cc.Priority > gatt.MaxPriority {
		return gatt.Characteristic{}, errors.Errorf("priority of %s out of range (0-%d): %d", cc.UUID, gatt.MaxPriority, cc.Priority)
	}

	var props uint8
	if cc.Read {
		props |= gatt.PropRead
	}
	if cc.Write {
		props |= gatt.PropWrite
	}
	if cc.Notify {
		props |= gatt.PropNotify
	}
	if cc.Indicate {
		props |= gatt.PropIndicate
	}
	if props == 0 {
		return gatt.Characteristic{}, errors.Errorf("%s has no properties", cc.UUID)
	}

	return gatt.Characteristic{
		UUID:       uuid,
		Name:       cc.Name,
		Properties: props,
		Priority:   cc.Priority,
		Value:      value,
	}, nil
}
