package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gradewire/gradewire/pkg/domain"
)

// Claim is time-bounded exclusive ownership of one submission at one stage.
type Claim struct {
	PublicID       string
	Stage          domain.Stage
	Attempt        int
	LeaseExpiresAt time.Time
}

// claimSQL holds the per-stage statements. Status literals and the attempt
// column name are baked in from the stage's Lifecycle at package init, so no
// identifier is ever interpolated from request input.
type claimSQL struct {
	claimNext            string
	heartbeat            string
	finalizeSuccess      string
	finalizeFailureRetry string
	finalizeTerminal     string
	reclaimExpiredRetry  string
	reclaimExpiredDead   string
}

var claimSQLByStage = buildClaimSQL()

func buildClaimSQL() map[domain.Stage]claimSQL {
	out := make(map[domain.Stage]claimSQL, len(domain.AllStages))
	for _, stage := range domain.AllStages {
		lc := domain.MustLifecycleFor(stage)
		out[stage] = claimSQL{
			// Inner SELECT takes the row lock with SKIP LOCKED so concurrent
			// claimants neither block nor double-claim.
			claimNext: fmt.Sprintf(`
WITH next AS (
    SELECT id FROM submissions
    WHERE status = '%s'
    ORDER BY created_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE submissions AS s SET
    status = '%s',
    claimed_by = $1,
    claimed_at = now(),
    lease_expires_at = now() + make_interval(secs => $2),
    updated_at = now()
FROM next
WHERE s.id = next.id
RETURNING s.public_id, s.%s, s.lease_expires_at`,
				lc.Pre, lc.InProgress, lc.AttemptColumn),

			heartbeat: fmt.Sprintf(`
UPDATE submissions SET
    lease_expires_at = now() + make_interval(secs => $3),
    updated_at = now()
WHERE public_id = $1 AND status = '%s' AND claimed_by = $2 AND lease_expires_at > now()`,
				lc.InProgress),

			finalizeSuccess: fmt.Sprintf(`
UPDATE submissions SET
    status = '%s',
    claimed_by = NULL, claimed_at = NULL, lease_expires_at = NULL,
    last_error_code = NULL, last_error_message = NULL,
    updated_at = now()
WHERE public_id = $1 AND status = '%s' AND claimed_by = $2 AND lease_expires_at > now()`,
				lc.Success, lc.InProgress),

			finalizeFailureRetry: fmt.Sprintf(`
UPDATE submissions SET
    status = '%s',
    %s = %s + 1,
    claimed_by = NULL, claimed_at = NULL, lease_expires_at = NULL,
    last_error_code = $3, last_error_message = $4,
    updated_at = now()
WHERE public_id = $1 AND status = '%s' AND claimed_by = $2
  AND lease_expires_at > now() AND %s + 1 < $5`,
				lc.Failed, lc.AttemptColumn, lc.AttemptColumn, lc.InProgress, lc.AttemptColumn),

			// FOR UPDATE (without SKIP LOCKED) serializes with a concurrent
			// reclaim touching the same row. No attempt increment: the
			// attempt that just failed already reached the limit check.
			finalizeTerminal: fmt.Sprintf(`
WITH locked AS (
    SELECT id FROM submissions
    WHERE public_id = $1 AND status = '%s' AND claimed_by = $2 AND lease_expires_at > now()
    FOR UPDATE
)
UPDATE submissions AS s SET
    status = '%s',
    claimed_by = NULL, claimed_at = NULL, lease_expires_at = NULL,
    last_error_code = $3, last_error_message = $4,
    updated_at = now()
FROM locked
WHERE s.id = locked.id`,
				lc.InProgress, domain.StatusDeadLetter),

			reclaimExpiredRetry: fmt.Sprintf(`
WITH expired AS (
    SELECT id FROM submissions
    WHERE status = '%s' AND lease_expires_at <= now() AND %s + 1 < $3
    ORDER BY lease_expires_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT $4
)
UPDATE submissions AS s SET
    status = '%s',
    %s = %s + 1,
    claimed_by = NULL, claimed_at = NULL, lease_expires_at = NULL,
    last_error_code = $1, last_error_message = $2,
    updated_at = now()
FROM expired
WHERE s.id = expired.id
RETURNING s.public_id`,
				lc.InProgress, lc.AttemptColumn, lc.Failed, lc.AttemptColumn, lc.AttemptColumn),

			reclaimExpiredDead: fmt.Sprintf(`
WITH expired AS (
    SELECT id FROM submissions
    WHERE status = '%s' AND lease_expires_at <= now() AND %s + 1 >= $3
    ORDER BY lease_expires_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT $4
)
UPDATE submissions AS s SET
    status = '%s',
    claimed_by = NULL, claimed_at = NULL, lease_expires_at = NULL,
    last_error_code = $1, last_error_message = $2,
    updated_at = now()
FROM expired
WHERE s.id = expired.id
RETURNING s.public_id`,
				lc.InProgress, lc.AttemptColumn, domain.StatusDeadLetter),
		}
	}
	return out
}

func (s *Store) stageSQL(stage domain.Stage) (claimSQL, error) {
	q, ok := claimSQLByStage[stage]
	if !ok {
		return claimSQL{}, NewValidationError("stage", fmt.Sprintf("unknown stage '%s'", stage))
	}
	return q, nil
}

// ClaimNext atomically claims the oldest submission waiting at the stage's
// pre-state. Returns (nil, nil) when no work is available.
func (s *Store) ClaimNext(ctx context.Context, stage domain.Stage, workerID string, leaseSeconds int) (*Claim, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return nil, err
	}
	if workerID == "" {
		return nil, NewValidationError("worker_id", "required")
	}
	if leaseSeconds <= 0 {
		return nil, NewValidationError("lease_seconds", "must be positive")
	}

	claim := &Claim{Stage: stage}
	err = s.db.QueryRowContext(ctx, q.claimNext, workerID, leaseSeconds).
		Scan(&claim.PublicID, &claim.Attempt, &claim.LeaseExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim next submission: %w", err)
	}
	return claim, nil
}

// HeartbeatClaim extends the lease. A false return means the lease was lost
// (reclaimed, finalized, or transitioned away); the caller must treat it as
// cancellation.
func (s *Store) HeartbeatClaim(ctx context.Context, stage domain.Stage, publicID, workerID string, leaseSeconds int) (bool, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return false, err
	}
	return s.execOwned(ctx, "heartbeat_claim", q.heartbeat, publicID, workerID, leaseSeconds)
}

// FinalizeSuccess moves the claimed submission to the stage's success state
// and clears lease and error fields. Returns whether the row moved.
func (s *Store) FinalizeSuccess(ctx context.Context, stage domain.Stage, publicID, workerID string) (bool, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return false, err
	}
	return s.execOwned(ctx, "finalize_success", q.finalizeSuccess, publicID, workerID)
}

// FinalizeFailureRetry parks the submission in the stage's failed state with
// an incremented attempt counter. A false return means either the attempt
// budget is exhausted (caller should try FinalizeFailureTerminal) or the
// lease was lost.
func (s *Store) FinalizeFailureRetry(ctx context.Context, stage domain.Stage, publicID, workerID string, errorCode domain.ErrorCode, errorMessage string, maxAttempts int) (bool, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return false, err
	}
	code := domain.ResolveStageError(stage, errorCode)
	return s.execOwned(ctx, "finalize_failure_retry", q.finalizeFailureRetry,
		publicID, workerID, string(code), truncateError(errorMessage), maxAttempts)
}

// FinalizeFailureTerminal moves the claimed submission straight to
// dead_letter. A false return means the lease was lost.
func (s *Store) FinalizeFailureTerminal(ctx context.Context, stage domain.Stage, publicID, workerID string, errorCode domain.ErrorCode, errorMessage string) (bool, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return false, err
	}
	code := domain.ResolveStageError(stage, errorCode)
	return s.execOwned(ctx, "finalize_failure_terminal", q.finalizeTerminal,
		publicID, workerID, string(code), truncateError(errorMessage))
}

// ReclaimExpiredRetry returns expired claims with remaining attempts to the
// stage's failed state, incrementing the counter. At most limit rows move
// per call.
func (s *Store) ReclaimExpiredRetry(ctx context.Context, stage domain.Stage, maxAttempts, limit int) ([]string, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return nil, err
	}
	return s.execReclaim(ctx, "reclaim_expired_retry", q.reclaimExpiredRetry, maxAttempts, limit)
}

// ReclaimExpiredDeadLetter moves expired claims with an exhausted attempt
// budget to dead_letter. Together with ReclaimExpiredRetry the two
// statements partition the expired-claims set: exactly one moves any row.
func (s *Store) ReclaimExpiredDeadLetter(ctx context.Context, stage domain.Stage, maxAttempts, limit int) ([]string, error) {
	q, err := s.stageSQL(stage)
	if err != nil {
		return nil, err
	}
	return s.execReclaim(ctx, "reclaim_expired_dead_letter", q.reclaimExpiredDead, maxAttempts, limit)
}

// TransitionState performs a stage-agnostic status edge, such as the ingress
// move from telegram_update_received to uploaded or an operator requeue from
// a failed state. The edge must be in the transition graph.
func (s *Store) TransitionState(ctx context.Context, publicID string, from, to domain.Status) (bool, error) {
	if !domain.ValidStatus(from) || !domain.ValidStatus(to) {
		return false, NewValidationError("status", "unknown status")
	}
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE submissions SET status = $3, updated_at = now()
WHERE public_id = $1 AND status = $2`, publicID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to transition state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// LinkArtifact appends an artifact pointer for the submission under a trace
// label. Artifacts are never updated; readers take the latest row per
// (submission, label).
func (s *Store) LinkArtifact(ctx context.Context, publicID, artifactKey, bucket, objectKey string, schemaVersion *string) error {
	if !domain.ValidArtifactKey(artifactKey) {
		return NewValidationError("artifact_key", fmt.Sprintf("unknown artifact key '%s'", artifactKey))
	}
	if bucket == "" || objectKey == "" {
		return NewValidationError("artifact_ref", "bucket and object_key are required")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO artifacts (submission_id, stage, bucket, object_key, schema_version)
SELECT id, $2, $3, $4, $5 FROM submissions WHERE public_id = $1`,
		publicID, artifactKey, bucket, objectKey, schemaVersion)
	if err != nil {
		return fmt.Errorf("failed to link artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// execOwned runs a lease-gated single-row update and reports whether the row
// moved.
func (s *Store) execOwned(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to execute %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for %s: %w", op, err)
	}
	return n == 1, nil
}

func (s *Store) execReclaim(ctx context.Context, op, query string, maxAttempts, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, NewValidationError("limit", "must be positive")
	}
	rows, err := s.db.QueryContext(ctx, query,
		string(domain.ErrCodeLeaseExpired), "lease expired before finalize", maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", op, err)
	}
	if len(ids) > 0 {
		s.logger.Warn("Reclaimed expired claims", "op", op, "count", len(ids), "ids", ids)
	}
	return ids, nil
}

const maxErrorMessageLen = 2000

func truncateError(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	// Cut on a rune boundary so the stored message stays valid UTF-8.
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
