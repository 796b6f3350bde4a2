// Package config loads the process configuration. A .env file is applied
// when present, then the environment is parsed into a typed struct with
// defaults. Configuration is read-only after process start.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full configuration surface of the lobby service.
type Config struct {
	Service struct {
		Name    string `env:"SERVICE_NAME" envDefault:"lobby-service"`
		Version string `env:"SERVICE_VERSION" envDefault:"dev"`
		Env     string `env:"ENV" envDefault:"development"`
		Port    string `env:"SERVICE_PORT" envDefault:"8081"`
	}

	Logging struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	Database struct {
		URL string `env:"DATABASE_URL"`
	}

	Auth struct {
		JWTSecret string `env:"JWT_SECRET"`
	}

	Lobby struct {
		RoundDurationSeconds  int `env:"SESSION_DURATION_SECONDS" envDefault:"60"`
		MaxPlayers            int `env:"SESSION_MAX_PLAYERS" envDefault:"10"`
		ActivityWindowSeconds int `env:"ACTIVITY_WINDOW_SECONDS" envDefault:"300"`
		AutoStartDelaySeconds int `env:"AUTO_START_DELAY_SECONDS" envDefault:"30"`
		ExpirySweepSeconds    int `env:"EXPIRY_SWEEP_SECONDS" envDefault:"10"`
		IdleReapSeconds       int `env:"IDLE_REAP_SECONDS" envDefault:"60"`
	}

	Tracing struct {
		Enabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
		Endpoint   string  `env:"TRACING_ENDPOINT" envDefault:"http://localhost:4318"`
		SampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	}

	Profiling struct {
		Enabled  bool   `env:"PROFILING_ENABLED" envDefault:"false"`
		Endpoint string `env:"PROFILING_ENDPOINT" envDefault:"http://localhost:4040"`
	}

	Shutdown struct {
		TimeoutSeconds             int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`
		ReadinessDrainDelaySeconds int `env:"READINESS_DRAIN_DELAY_SECONDS" envDefault:"0"`
	}
}

// Load reads .env (when present) and the environment. Parse failures are
// unrecoverable this early, so Load panics on them.
func Load() *Config {
	// Missing .env is fine; real deployments configure the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic("parse configuration: " + err.Error())
	}
	return cfg
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Lobby.RoundDurationSeconds <= 0 {
		return fmt.Errorf("SESSION_DURATION_SECONDS must be positive")
	}
	if c.Lobby.MaxPlayers <= 0 {
		return fmt.Errorf("SESSION_MAX_PLAYERS must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be within [0, 1]")
	}
	return nil
}

// Duration accessors; the env surface stays in integer seconds for parity
// with the service's deployment manifests.

func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.Lobby.RoundDurationSeconds) * time.Second
}

func (c *Config) ActivityWindow() time.Duration {
	return time.Duration(c.Lobby.ActivityWindowSeconds) * time.Second
}

func (c *Config) AutoStartDelay() time.Duration {
	return time.Duration(c.Lobby.AutoStartDelaySeconds) * time.Second
}

func (c *Config) ExpirySweepInterval() time.Duration {
	return time.Duration(c.Lobby.ExpirySweepSeconds) * time.Second
}

func (c *Config) IdleReapInterval() time.Duration {
	return time.Duration(c.Lobby.IdleReapSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSeconds) * time.Second
}

func (c *Config) ReadinessDrainDelay() time.Duration {
	return time.Duration(c.Shutdown.ReadinessDrainDelaySeconds) * time.Second
}
