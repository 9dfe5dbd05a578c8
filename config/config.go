package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/riftcade/tracefire/game"
)

// Config holds the tunables of a simulation engine session. Material rules are
// part of the configuration surface on purpose: penetration and ricochet curves
// are balance data, not physics the engine hard-codes.
type Config struct {
	// TickRate is the amount of simulation ticks per second.
	TickRate float32 `yaml:"tick_rate"`

	// Gravity is the default downward acceleration for projectiles that do not
	// set their own, in units per second squared.
	Gravity float32 `yaml:"gravity"`

	// SpawnQueueSize caps how many spawn requests may sit between the
	// coordinator and the worker at once. Requests beyond it are dropped.
	SpawnQueueSize int `yaml:"spawn_queue_size"`

	// HistoryTicks is how many ticks of entity position history the default
	// oracle retains for rewinding.
	HistoryTicks int `yaml:"history_ticks"`

	// DispatchWorkers is the size of the background dispatch pool for outbound
	// effect and confirmation calls. 0 uses the CPU count.
	DispatchWorkers int `yaml:"dispatch_workers"`

	Materials game.MaterialRules `yaml:"materials"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		TickRate:       64,
		Gravity:        9.8,
		SpawnQueueSize: 1024,
		HistoryTicks:   20,
		Materials:      game.MaterialRules{},
	}
}

// Load reads a YAML configuration file, filling unset fields with defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("config: tick rate must be above zero, got %v", c.TickRate)
	}
	if c.SpawnQueueSize < 0 {
		return fmt.Errorf("config: spawn queue size must not be negative, got %d", c.SpawnQueueSize)
	}
	if c.HistoryTicks < 0 {
		return fmt.Errorf("config: history ticks must not be negative, got %d", c.HistoryTicks)
	}
	for tag, rule := range c.Materials {
		if rule.SpeedLoss < 0 || rule.SpeedLoss > 1 {
			return fmt.Errorf("config: material %q has speed loss %v outside [0, 1]", tag, rule.SpeedLoss)
		}
	}

	return nil
}
