package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Screen.Width != 500 || cfg.Screen.Height != 800 {
		t.Errorf("screen = %dx%d, want 500x800", cfg.Screen.Width, cfg.Screen.Height)
	}
	if cfg.Agent.JumpVelocity != -10.5 {
		t.Errorf("jump velocity = %v, want -10.5", cfg.Agent.JumpVelocity)
	}
	if cfg.Obstacle.GapMin != 40 || cfg.Obstacle.GapMax != 450 {
		t.Errorf("gap range = [%d, %d), want [40, 450)", cfg.Obstacle.GapMin, cfg.Obstacle.GapMax)
	}
	if cfg.Derived.TickInterval != time.Second/30 {
		t.Errorf("tick interval = %v, want %v", cfg.Derived.TickInterval, time.Second/30)
	}
	if cfg.Derived.FieldHeight != 800 {
		t.Errorf("derived field height = %v, want 800", cfg.Derived.FieldHeight)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	data := []byte("obstacle:\n  velocity: 15\nfitness:\n  traversal_bonus: 7\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Obstacle.Velocity != 15 {
		t.Errorf("velocity = %v, want 15", cfg.Obstacle.Velocity)
	}
	if cfg.Fitness.TraversalBonus != 7 {
		t.Errorf("traversal bonus = %v, want 7", cfg.Fitness.TraversalBonus)
	}
	if cfg.Obstacle.Gap != 200 {
		t.Errorf("gap = %v, want default 200", cfg.Obstacle.Gap)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative gap", func(c *Config) { c.Obstacle.Gap = -1 }},
		{"zero playfield height", func(c *Config) { c.Screen.Height = 0 }},
		{"empty gap range", func(c *Config) { c.Obstacle.GapMax = c.Obstacle.GapMin }},
		{"zero obstacle velocity", func(c *Config) { c.Obstacle.Velocity = 0 }},
		{"narrow ground segment", func(c *Config) { c.Ground.SegmentWidth = 100 }},
		{"tilt limits inverted", func(c *Config) { c.Agent.MinTilt = 30 }},
		{"agent below ground", func(c *Config) { c.Agent.StartY = 760 }},
		{"sqlite without path", func(c *Config) { c.Storage.Kind = "sqlite" }},
		{"unknown storage", func(c *Config) { c.Storage.Kind = "redis" }},
		{"elite larger than population", func(c *Config) { c.Population.Elite = c.Population.Size + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Population.Size = 12

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.Population.Size != 12 {
		t.Errorf("population size = %d, want 12", loaded.Population.Size)
	}
}

func TestValidateSimulationScope(t *testing.T) {
	t.Run("run sections ignored", func(t *testing.T) {
		cfg := Default()
		cfg.Observer.ClientBuffer = 0
		cfg.Optimize.Seeds = 0
		cfg.Population.Size = 0
		cfg.Mutation.Rate = 2
		cfg.Storage.Kind = "redis"
		if err := cfg.ValidateSimulation(); err != nil {
			t.Errorf("ValidateSimulation = %v, want nil", err)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate = %v, want ErrInvalid", err)
		}
	})
	t.Run("simulation sections checked", func(t *testing.T) {
		cfg := Default()
		cfg.Ground.Velocity = 0
		cfg.Fitness.Survival = math.NaN()
		err := cfg.ValidateSimulation()
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("ValidateSimulation = %v, want ErrInvalid", err)
		}
		if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 2 {
			t.Errorf("reported %d problems, want 2", n)
		}
	})
}
