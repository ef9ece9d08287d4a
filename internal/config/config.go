package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/house-heist/internal/game"
)

type Config struct {
	Rules  game.Rules `yaml:"rules"`
	Server Server     `yaml:"server"`
}

type Server struct {
	// Per-connection inbound message limit.
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	MessageBurst      int     `yaml:"message_burst"`

	// Outbound notifications buffered per connection before the oldest is
	// dropped.
	OutboxSize int `yaml:"outbox_size"`

	RequestTimeout time.Duration `yaml:"request_timeout"`

	DataDir    string `yaml:"data_dir"`
	AuditLog   bool   `yaml:"audit_log"`
	AuditIndex bool   `yaml:"audit_index"`
}

func Defaults() Config {
	return Config{
		Rules: game.DefaultRules(),
		Server: Server{
			MessagesPerSecond: 10,
			MessageBurst:      20,
			OutboxSize:        64,
			RequestTimeout:    5 * time.Second,
			DataDir:           "data",
			AuditLog:          true,
			AuditIndex:        true,
		},
	}
}

// Load reads a YAML config on top of Defaults, so a file only needs the keys
// it changes.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if c.Server.MessagesPerSecond <= 0 || c.Server.MessageBurst <= 0 {
		return fmt.Errorf("server: rate limit must be positive")
	}
	if c.Server.OutboxSize <= 0 {
		return fmt.Errorf("server: outbox_size must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server: request_timeout must be positive")
	}
	return nil
}
