// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config implements the driver task configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pion/logging"

	"github.com/usbarmory/armory-hashcrypt/internal/driver"
	"github.com/usbarmory/armory-hashcrypt/internal/syscon"
)

const defaultLogLevel = "info"

// Driver is the driver task configuration.
type Driver struct {
	// Peripheral is the clock and reset control peripheral number.
	Peripheral uint32

	// NotificationMask is the notification bit assigned to the engine
	// interrupt, it must have exactly one bit set.
	NotificationMask uint32

	// ErrorPolicy is "abort" or "log".
	ErrorPolicy string

	// KeyLatchSpin bounds the key loading poll loop, 0 is unbounded.
	KeyLatchSpin int
}

func (d *Driver) validate() (err error) {
	if d.Peripheral == 0 {
		d.Peripheral = syscon.HASHCRYPT
	}

	if d.NotificationMask == 0 {
		d.NotificationMask = driver.IRQ_NOTIFICATION
	}

	if d.NotificationMask&(d.NotificationMask-1) != 0 {
		return fmt.Errorf("config: Driver: NotificationMask %#x has more than one bit set", d.NotificationMask)
	}

	if d.KeyLatchSpin < 0 {
		return errors.New("config: Driver: KeyLatchSpin is negative")
	}

	if _, err = driver.ParseErrorPolicy(d.ErrorPolicy); err != nil {
		return fmt.Errorf("config: Driver: %w", err)
	}

	return
}

// Policy returns the parsed error policy.
func (d *Driver) Policy() driver.ErrorPolicy {
	p, _ := driver.ParseErrorPolicy(d.ErrorPolicy)
	return p
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// Level specifies the log level, one of "error", "warn", "info",
	// "debug" or "trace".
	Level string
}

var logLevels = map[string]logging.LogLevel{
	"error": logging.LogLevelError,
	"warn":  logging.LogLevelWarn,
	"info":  logging.LogLevelInfo,
	"debug": logging.LogLevelDebug,
	"trace": logging.LogLevelTrace,
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	l.Level = strings.ToLower(l.Level)

	if _, ok := logLevels[l.Level]; !ok {
		return fmt.Errorf("config: Logging: Level %q is invalid", l.Level)
	}

	return nil
}

// LoggerFactory returns a logger factory honoring the configured level.
func (l *Logging) LoggerFactory() logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()

	switch {
	case l.Disable:
		lf.DefaultLogLevel = logging.LogLevelDisabled
	default:
		lf.DefaultLogLevel = logLevels[l.Level]
	}

	return lf
}

// Config is the top level configuration.
type Config struct {
	Driver  *Driver
	Logging *Logging
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Driver == nil {
		cfg.Driver = &Driver{}
	}

	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}

	if err := cfg.Driver.validate(); err != nil {
		return err
	}

	return cfg.Logging.validate()
}

// DriverConfig returns the driver settings carried by the configuration,
// the caller supplies the engine and kernel bindings.
func (cfg *Config) DriverConfig() driver.Config {
	return driver.Config{
		Peripheral:    cfg.Driver.Peripheral,
		Notification:  cfg.Driver.NotificationMask,
		ErrorPolicy:   cfg.Driver.Policy(),
		KeyLatchSpin:  cfg.Driver.KeyLatchSpin,
		LoggerFactory: cfg.Logging.LoggerFactory(),
	}
}

// Default returns a validated configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}

	if err := cfg.FixupAndValidate(); err != nil {
		panic(err)
	}

	return cfg
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)

	if err != nil {
		return nil, err
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}

	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)

	if err != nil {
		return nil, err
	}

	return Load(b)
}
