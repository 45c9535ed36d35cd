package database

import (
	"context"
	"database/sql"
	"time"
)

// degradedPingThreshold flags a reachable but slow database. Lease
// heartbeats ride on sub-second statements, so a ping past this bound
// means reclaim timing is already at risk.
const degradedPingThreshold = 500 * time.Millisecond

// HealthStatus reports connectivity plus the pool counters that matter for
// claim throughput (a saturated pool shows up as wait_count growth).
type HealthStatus struct {
	Status          string `json:"status"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    int64  `json:"wait_duration_ms"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health pings the database and snapshots pool statistics. Status is
// "healthy", "degraded" (reachable but slow), or "unhealthy".
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	elapsed := time.Since(start)
	status := "healthy"
	if elapsed > degradedPingThreshold {
		status = "degraded"
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:          status,
		ResponseTime:    elapsed.Milliseconds(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration.Milliseconds(),
		MaxOpenConns:    stats.MaxOpenConnections,
	}, nil
}
