package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero lease",
			mutate:  func(c *Config) { c.LeaseSeconds = 0 },
			wantErr: "lease seconds must be positive",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: "max attempts must be positive",
		},
		{
			name: "heartbeat too slow for lease",
			mutate: func(c *Config) {
				c.LeaseSeconds = 30
				c.HeartbeatInterval = 20 * time.Second
			},
			wantErr: "heartbeat interval",
		},
		{
			name: "heartbeat just over a third of the lease",
			mutate: func(c *Config) {
				c.LeaseSeconds = 30
				c.HeartbeatInterval = 10*time.Second + time.Millisecond
			},
			wantErr: "need 3 * interval <= lease",
		},
		{
			name: "three heartbeats exactly fill the lease",
			mutate: func(c *Config) {
				c.LeaseSeconds = 30
				c.HeartbeatInterval = 10 * time.Second
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("WORKER_POLL_INTERVAL_MS", "50")
	t.Setenv("WORKER_IDLE_BACKOFF_MS", "500")
	t.Setenv("WORKER_HEARTBEAT_INTERVAL_MS", "2000")
	t.Setenv("WORKER_CLAIM_LEASE_SECONDS", "10")
	t.Setenv("WORKER_MAX_ATTEMPTS", "5")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.IdleBackoff)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10, cfg.LeaseSeconds)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestLoadConfigFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("WORKER_CLAIM_LEASE_SECONDS", "soon")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)

	t.Setenv("WORKER_CLAIM_LEASE_SECONDS", "-5")
	_, err = LoadConfigFromEnv()
	assert.Error(t, err)
}

func TestLoadConfigFromEnvRejectsIncoherentCoupling(t *testing.T) {
	t.Setenv("WORKER_CLAIM_LEASE_SECONDS", "5")
	t.Setenv("WORKER_HEARTBEAT_INTERVAL_MS", "4000")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
