// Package config loads the bot configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

// Filters holds the user-configured listing criteria. Every field is
// optional; a zero value means no restriction.
type Filters struct {
	MustIncludeKeywords []string `yaml:"must_include_keywords"`
	ExcludeKeywords     []string `yaml:"exclude_keywords"`
	MinRooms            float64  `yaml:"min_rooms"`
	MinSizeSqm          int      `yaml:"min_size_sqm"`
	MaxSizeSqm          int      `yaml:"max_size_sqm"`
	MinPriceNis         int      `yaml:"min_price_nis"`
	MaxPriceNis         int      `yaml:"max_price_nis"`
}

// Email holds delivery settings. The SMTP app password is deliberately
// not part of the file; it comes from the GMAIL_APP_PASSWORD environment
// variable so it never lands in version control.
type Email struct {
	FromEmail string   `yaml:"from_email"`
	FromName  string   `yaml:"from_name"`
	ToEmails  []string `yaml:"to_emails"`
	SMTPHost  string   `yaml:"smtp_host"`
	SMTPPort  int      `yaml:"smtp_port"`
}

// Config is the full run configuration, loaded once at startup and
// passed explicitly into each component.
type Config struct {
	Sources []rental.Source `yaml:"sources"`
	Filters Filters         `yaml:"filters"`
	Email   Email           `yaml:"email"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no sources configured")
	}
	for i, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("source %d (%q) has no url", i, src.Name)
		}
		if src.Name == "" {
			c.Sources[i].Name = src.URL
		}
	}
	if c.Email.FromEmail == "" {
		return errors.New("email.from_email is required")
	}
	if len(c.Email.ToEmails) == 0 {
		return errors.New("email.to_emails is required")
	}
	if c.Email.SMTPHost == "" {
		return errors.New("email.smtp_host is required")
	}
	if c.Email.SMTPPort == 0 {
		return errors.New("email.smtp_port is required")
	}
	return nil
}
