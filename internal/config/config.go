// Package config loads the MachinePilot configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full service configuration. Every field has a sane default
// so the demo runs with no config file at all.
type Config struct {
	Env    string `yaml:"env" env:"MACHINEPILOT_ENV" env-default:"local"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env:"MACHINEPILOT_BIND_IP" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env:"MACHINEPILOT_PORT" env-default:"8080"`
	} `yaml:"listen"`
	Store struct {
		// Driver is one of memory, sqlite, postgres.
		Driver string `yaml:"driver" env:"MACHINEPILOT_STORE_DRIVER" env-default:"memory"`
		DSN    string `yaml:"dsn" env:"MACHINEPILOT_STORE_DSN" env-default:""`
	} `yaml:"store"`
	Flow struct {
		AutoAdvanceDelayMs  int `yaml:"auto_advance_delay_ms" env:"MACHINEPILOT_AUTO_ADVANCE_DELAY_MS" env-default:"600"`
		OTPTTLMinutes       int `yaml:"otp_ttl_minutes" env:"MACHINEPILOT_OTP_TTL_MINUTES" env-default:"10"`
		ResetTTLMinutes     int `yaml:"reset_ttl_minutes" env:"MACHINEPILOT_RESET_TTL_MINUTES" env-default:"60"`
		DeviceTTLMinutes    int `yaml:"device_ttl_minutes" env:"MACHINEPILOT_DEVICE_TTL_MINUTES" env-default:"1440"`
		ProvisionDelayMs    int `yaml:"provision_delay_ms" env:"MACHINEPILOT_PROVISION_DELAY_MS" env-default:"2000"`
		SessionTTLMinutes   int `yaml:"session_ttl_minutes" env:"MACHINEPILOT_SESSION_TTL_MINUTES" env-default:"10080"`
	} `yaml:"flow"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Listen.BindIP, c.Listen.Port)
}

// MustLoad reads the config file at path, falling back to environment-only
// configuration when the file does not exist. Exits the process on a
// malformed file.
func MustLoad(path string) *Config {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			log.Fatalf("failed to read config from environment: %v", err)
		}
		return cfg
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		log.Fatalf("failed to read config %s: %v; %s", path, err, desc)
	}
	return cfg
}
