package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gradewire/gradewire/pkg/domain"
)

const submissionColumns = `
id, public_id, candidate_id, assignment_id, status,
attempt_telegram_ingest, attempt_normalization, attempt_evaluation, attempt_delivery,
claimed_by, claimed_at, lease_expires_at,
last_error_code, last_error_message,
created_at, updated_at`

func scanSubmission(row interface{ Scan(...any) error }) (*domain.Submission, error) {
	sub := &domain.Submission{}
	err := row.Scan(
		&sub.ID, &sub.PublicID, &sub.CandidateID, &sub.AssignmentID, &sub.Status,
		&sub.AttemptTelegramIngest, &sub.AttemptNormalization, &sub.AttemptEvaluation, &sub.AttemptDelivery,
		&sub.ClaimedBy, &sub.ClaimedAt, &sub.LeaseExpiresAt,
		&sub.LastErrorCode, &sub.LastErrorMessage,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateSubmissionParams describes a new submission. Source fields are
// optional; when set they make creation idempotent on
// (source_type, source_external_id).
type CreateSubmissionParams struct {
	CandidatePublicID  string
	AssignmentPublicID string
	InitialStatus      domain.Status
	SourceType         string
	SourceExternalID   string
	SourcePayloadRef   *string
	SourceMetadataJSON []byte
}

// CreateSubmission inserts a submission, and its source link when one is
// given. A replayed source (same type and external ID) returns the existing
// submission with created = false instead of a duplicate.
func (s *Store) CreateSubmission(ctx context.Context, params CreateSubmissionParams) (*domain.Submission, bool, error) {
	if params.InitialStatus != domain.StatusUploaded && params.InitialStatus != domain.StatusTelegramUpdateReceived {
		return nil, false, NewValidationError("status", fmt.Sprintf("'%s' is not a valid initial status", params.InitialStatus))
	}
	if (params.SourceType == "") != (params.SourceExternalID == "") {
		return nil, false, NewValidationError("source", "source_type and source_external_id must be set together")
	}

	candidate, err := s.GetCandidate(ctx, params.CandidatePublicID)
	if err != nil {
		return nil, false, err
	}
	assignment, err := s.GetAssignment(ctx, params.AssignmentPublicID)
	if err != nil {
		return nil, false, err
	}

	sub := &domain.Submission{
		PublicID:     domain.NewSubmissionID(),
		CandidateID:  candidate.ID,
		AssignmentID: assignment.ID,
		Status:       params.InitialStatus,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
INSERT INTO submissions (public_id, candidate_id, assignment_id, status)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`,
			sub.PublicID, sub.CandidateID, sub.AssignmentID, string(sub.Status)).
			Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if params.SourceType != "" {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO submission_sources (submission_id, source_type, source_external_id, source_payload_ref, metadata_json)
VALUES ($1, $2, $3, $4, $5)`,
				sub.ID, params.SourceType, params.SourceExternalID, params.SourcePayloadRef,
				jsonOrEmpty(params.SourceMetadataJSON)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return sub, true, nil
	}
	if params.SourceType != "" && isUniqueViolation(err) {
		// Replayed source: the constraint aborted the insert, so the
		// submission that won the race is the canonical one.
		existing, lerr := s.GetSubmissionBySource(ctx, params.SourceType, params.SourceExternalID)
		if lerr != nil {
			return nil, false, fmt.Errorf("failed to re-read submission after source race: %w", lerr)
		}
		return existing, false, nil
	}
	return nil, false, err
}

// GetSubmission looks up a submission by public ID.
func (s *Store) GetSubmission(ctx context.Context, publicID string) (*domain.Submission, error) {
	if !domain.ValidPublicIDWithPrefix(publicID, domain.SubmissionIDPrefix) {
		return nil, NewValidationError("submission_id", "malformed public id")
	}
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `
SELECT `+submissionColumns+`
FROM submissions WHERE public_id = $1`, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// GetSubmissionBySource resolves a source link back to its submission.
func (s *Store) GetSubmissionBySource(ctx context.Context, sourceType, sourceExternalID string) (*domain.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `
SELECT `+submissionColumns+`
FROM submissions
WHERE id = (
    SELECT submission_id FROM submission_sources
    WHERE source_type = $1 AND source_external_id = $2
)`, sourceType, sourceExternalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission by source: %w", err)
	}
	return sub, nil
}

// GetSourceForSubmission returns the submission's source link, including the
// ingress metadata (telegram file_id and file_name for webhook intake).
func (s *Store) GetSourceForSubmission(ctx context.Context, publicID string) (*domain.SubmissionSource, error) {
	src := &domain.SubmissionSource{}
	err := s.db.QueryRowContext(ctx, `
SELECT ss.id, ss.submission_id, ss.source_type, ss.source_external_id,
       ss.source_payload_ref, ss.metadata_json, ss.created_at
FROM submission_sources ss
JOIN submissions sub ON sub.id = ss.submission_id
WHERE sub.public_id = $1
ORDER BY ss.created_at, ss.id
LIMIT 1`, publicID).
		Scan(&src.ID, &src.SubmissionID, &src.SourceType, &src.SourceExternalID,
			&src.SourcePayloadRef, &src.MetadataJSON, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission source: %w", err)
	}
	return src, nil
}

// ListSubmissionsFilter narrows ListSubmissions. Zero values mean no filter.
type ListSubmissionsFilter struct {
	Status domain.Status
	Limit  int
	Offset int
}

// ListSubmissions returns submissions newest first.
func (s *Store) ListSubmissions(ctx context.Context, filter ListSubmissionsFilter) ([]*domain.Submission, error) {
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, NewValidationError("status", fmt.Sprintf("unknown status '%s'", filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return out, nil
}

// ListArtifacts returns every artifact row for a submission, oldest first,
// for the submission trace view.
func (s *Store) ListArtifacts(ctx context.Context, publicID string) ([]*domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.submission_id, a.stage, a.bucket, a.object_key, a.schema_version, a.created_at
FROM artifacts a
JOIN submissions s ON s.id = a.submission_id
WHERE s.public_id = $1
ORDER BY a.created_at, a.id`, publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Artifact
	for rows.Next() {
		a := &domain.Artifact{}
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.Stage, &a.Bucket, &a.ObjectKey, &a.SchemaVersion, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	return out, nil
}

// LatestArtifact returns the newest artifact for a (submission, label)
// pair. Duplicate rows are tolerated; the greatest (created_at, id) wins.
func (s *Store) LatestArtifact(ctx context.Context, publicID, artifactKey string) (*domain.Artifact, error) {
	a := &domain.Artifact{}
	err := s.db.QueryRowContext(ctx, `
SELECT a.id, a.submission_id, a.stage, a.bucket, a.object_key, a.schema_version, a.created_at
FROM artifacts a
JOIN submissions s ON s.id = a.submission_id
WHERE s.public_id = $1 AND a.stage = $2
ORDER BY a.created_at DESC, a.id DESC
LIMIT 1`, publicID, artifactKey).
		Scan(&a.ID, &a.SubmissionID, &a.Stage, &a.Bucket, &a.ObjectKey, &a.SchemaVersion, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest artifact: %w", err)
	}
	return a, nil
}
