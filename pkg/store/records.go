package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gradewire/gradewire/pkg/domain"
)

// UpsertEvaluationParams carries the scored result of one evaluation run.
// JSON fields hold serialized documents produced by the evaluation chain.
type UpsertEvaluationParams struct {
	Score                  int
	CriteriaScoresJSON     []byte
	OrganizerFeedbackJSON  []byte
	CandidateFeedbackJSON  []byte
	AIAssistanceLikelihood float64
	AIAssistanceConfidence float64
}

// UpsertEvaluation writes the evaluation for a submission, overwriting any
// previous row. One row per submission; a re-run of the evaluate stage after
// reclaim replaces the earlier result.
func (s *Store) UpsertEvaluation(ctx context.Context, publicID string, params UpsertEvaluationParams) error {
	if params.Score < 1 || params.Score > 10 {
		return NewValidationError("score_1_10", "must be between 1 and 10")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO evaluations (
    submission_id, score_1_10, criteria_scores_json,
    organizer_feedback_json, candidate_feedback_json,
    ai_assistance_likelihood, ai_assistance_confidence
)
SELECT id, $2, $3, $4, $5, $6, $7 FROM submissions WHERE public_id = $1
ON CONFLICT (submission_id) DO UPDATE SET
    score_1_10 = EXCLUDED.score_1_10,
    criteria_scores_json = EXCLUDED.criteria_scores_json,
    organizer_feedback_json = EXCLUDED.organizer_feedback_json,
    candidate_feedback_json = EXCLUDED.candidate_feedback_json,
    ai_assistance_likelihood = EXCLUDED.ai_assistance_likelihood,
    ai_assistance_confidence = EXCLUDED.ai_assistance_confidence,
    updated_at = now()`,
		publicID, params.Score,
		jsonOrEmpty(params.CriteriaScoresJSON),
		jsonOrEmpty(params.OrganizerFeedbackJSON),
		jsonOrEmpty(params.CandidateFeedbackJSON),
		params.AIAssistanceLikelihood, params.AIAssistanceConfidence)
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation: %w", err)
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

// GetEvaluation returns the evaluation for a submission.
func (s *Store) GetEvaluation(ctx context.Context, publicID string) (*domain.Evaluation, error) {
	e := &domain.Evaluation{}
	err := s.db.QueryRowContext(ctx, `
SELECT e.id, e.submission_id, e.score_1_10, e.criteria_scores_json,
       e.organizer_feedback_json, e.candidate_feedback_json,
       e.ai_assistance_likelihood, e.ai_assistance_confidence,
       e.created_at, e.updated_at
FROM evaluations e
JOIN submissions s ON s.id = e.submission_id
WHERE s.public_id = $1`, publicID).
		Scan(&e.ID, &e.SubmissionID, &e.Score, &e.CriteriaScoresJSON,
			&e.OrganizerFeedbackJSON, &e.CandidateFeedbackJSON,
			&e.AIAssistanceLikelihood, &e.AIAssistanceConfidence,
			&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return e, nil
}

// InsertLLMRunParams is the audit record for one model invocation.
type InsertLLMRunParams struct {
	Provider         string
	Model            string
	APIBase          string
	ChainVersion     string
	SpecVersion      string
	ResponseLanguage string
	Temperature      float64
	Seed             *int64
	TokensInput      int64
	TokensOutput     int64
	LatencyMS        int64
}

// InsertLLMRun appends an llm_runs audit row for the submission.
func (s *Store) InsertLLMRun(ctx context.Context, publicID string, params InsertLLMRunParams) error {
	if params.Provider == "" || params.Model == "" {
		return NewValidationError("llm_run", "provider and model are required")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO llm_runs (
    submission_id, provider, model, api_base,
    chain_version, spec_version, response_language,
    temperature, seed, tokens_input, tokens_output, latency_ms
)
SELECT id, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
FROM submissions WHERE public_id = $1`,
		publicID, params.Provider, params.Model, params.APIBase,
		params.ChainVersion, params.SpecVersion, params.ResponseLanguage,
		params.Temperature, params.Seed, params.TokensInput, params.TokensOutput, params.LatencyMS)
	if err != nil {
		return fmt.Errorf("failed to insert llm run: %w", err)
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

// ListLLMRuns returns the llm_runs audit trail for a submission, newest
// first.
func (s *Store) ListLLMRuns(ctx context.Context, publicID string) ([]*domain.LLMRun, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.submission_id, r.provider, r.model, r.api_base,
       r.chain_version, r.spec_version, r.response_language,
       r.temperature, r.seed, r.tokens_input, r.tokens_output, r.latency_ms,
       r.created_at
FROM llm_runs r
JOIN submissions s ON s.id = r.submission_id
WHERE s.public_id = $1
ORDER BY r.created_at DESC, r.id DESC`, publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.LLMRun
	for rows.Next() {
		r := &domain.LLMRun{}
		if err := rows.Scan(&r.ID, &r.SubmissionID, &r.Provider, &r.Model, &r.APIBase,
			&r.ChainVersion, &r.SpecVersion, &r.ResponseLanguage,
			&r.Temperature, &r.Seed, &r.TokensInput, &r.TokensOutput, &r.LatencyMS,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan llm run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate llm runs: %w", err)
	}
	return out, nil
}

// InsertDeliveryParams records one attempt to hand results back.
type InsertDeliveryParams struct {
	Channel           string
	Status            string
	ExternalMessageID *string
	Attempts          int
	LastErrorCode     *string
}

// InsertDelivery appends a deliveries row for the submission.
func (s *Store) InsertDelivery(ctx context.Context, publicID string, params InsertDeliveryParams) error {
	if params.Channel == "" {
		return NewValidationError("channel", "required")
	}
	if params.Status == "" {
		return NewValidationError("status", "required")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO deliveries (submission_id, channel, status, external_message_id, attempts, last_error_code)
SELECT id, $2, $3, $4, $5, $6 FROM submissions WHERE public_id = $1`,
		publicID, params.Channel, params.Status,
		params.ExternalMessageID, params.Attempts, params.LastErrorCode)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
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

// FeedbackRow is one evaluated submission joined with its identity context,
// for organizer review and CSV export.
type FeedbackRow struct {
	SubmissionPublicID     string
	Status                 domain.Status
	CandidatePublicID      string
	CandidateFirstName     string
	CandidateLastName      string
	AssignmentPublicID     string
	AssignmentTitle        string
	Score                  int
	CriteriaScoresJSON     []byte
	OrganizerFeedbackJSON  []byte
	CandidateFeedbackJSON  []byte
	AIAssistanceLikelihood float64
	AIAssistanceConfidence float64
	EvaluatedAt            sql.NullTime
}

// ListFeedback returns evaluated submissions for an assignment (or all
// assignments when assignmentPublicID is empty), newest evaluation first.
func (s *Store) ListFeedback(ctx context.Context, assignmentPublicID string, limit int) ([]*FeedbackRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := `
SELECT sub.public_id, sub.status,
       c.public_id, c.first_name, c.last_name,
       a.public_id, a.title,
       e.score_1_10, e.criteria_scores_json, e.organizer_feedback_json, e.candidate_feedback_json,
       e.ai_assistance_likelihood, e.ai_assistance_confidence, e.updated_at
FROM evaluations e
JOIN submissions sub ON sub.id = e.submission_id
JOIN candidates c ON c.id = sub.candidate_id
JOIN assignments a ON a.id = sub.assignment_id`
	args := []any{}
	if assignmentPublicID != "" {
		query += ` WHERE a.public_id = $1`
		args = append(args, assignmentPublicID)
	}
	query += fmt.Sprintf(` ORDER BY e.updated_at DESC, e.id DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FeedbackRow
	for rows.Next() {
		r := &FeedbackRow{}
		if err := rows.Scan(&r.SubmissionPublicID, &r.Status,
			&r.CandidatePublicID, &r.CandidateFirstName, &r.CandidateLastName,
			&r.AssignmentPublicID, &r.AssignmentTitle,
			&r.Score, &r.CriteriaScoresJSON, &r.OrganizerFeedbackJSON, &r.CandidateFeedbackJSON,
			&r.AIAssistanceLikelihood, &r.AIAssistanceConfidence, &r.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	return out, nil
}

func jsonOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
