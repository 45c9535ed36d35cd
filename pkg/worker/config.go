package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the runner cadence and claim leases.
type Config struct {
	// PollInterval is the sleep after a tick that did work.
	PollInterval time.Duration

	// IdleBackoff is the sleep after a tick that found no work.
	IdleBackoff time.Duration

	// ErrorBackoff is the sleep after a tick that errored out.
	ErrorBackoff time.Duration

	// LeaseSeconds is how long a claim is exclusively owned before another
	// worker may reclaim it.
	LeaseSeconds int

	// HeartbeatInterval is the cadence of lease extension. Must satisfy
	// 3 * HeartbeatInterval <= LeaseSeconds so a single missed heartbeat
	// does not cause reclaim.
	HeartbeatInterval time.Duration

	// MaxAttempts bounds retries per stage before dead_letter.
	MaxAttempts int

	// ReclaimBatchLimit bounds how many expired claims one tick may reclaim.
	ReclaimBatchLimit int
}

// DefaultConfig returns the built-in worker defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      200 * time.Millisecond,
		IdleBackoff:       1 * time.Second,
		ErrorBackoff:      2 * time.Second,
		LeaseSeconds:      30,
		HeartbeatInterval: 10 * time.Second,
		MaxAttempts:       3,
		ReclaimBatchLimit: 50,
	}
}

// LoadConfigFromEnv loads worker configuration from environment variables,
// falling back to defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.PollInterval, err = envMillis("WORKER_POLL_INTERVAL_MS", cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.IdleBackoff, err = envMillis("WORKER_IDLE_BACKOFF_MS", cfg.IdleBackoff); err != nil {
		return Config{}, err
	}
	if cfg.ErrorBackoff, err = envMillis("WORKER_ERROR_BACKOFF_MS", cfg.ErrorBackoff); err != nil {
		return Config{}, err
	}
	if cfg.HeartbeatInterval, err = envMillis("WORKER_HEARTBEAT_INTERVAL_MS", cfg.HeartbeatInterval); err != nil {
		return Config{}, err
	}
	if cfg.LeaseSeconds, err = envInt("WORKER_CLAIM_LEASE_SECONDS", cfg.LeaseSeconds); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = envInt("WORKER_MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the lease/heartbeat coupling.
func (c Config) Validate() error {
	if c.LeaseSeconds <= 0 {
		return fmt.Errorf("lease seconds must be positive, got %d", c.LeaseSeconds)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if 3*c.HeartbeatInterval > time.Duration(c.LeaseSeconds)*time.Second {
		return fmt.Errorf("heartbeat interval %v too long for lease of %ds: need 3 * interval <= lease",
			c.HeartbeatInterval, c.LeaseSeconds)
	}
	return nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(val)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func envInt(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return n, nil
}
