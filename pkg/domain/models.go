package domain

import "time"

// Candidate is a person who submits assignments, possibly reachable through
// several sources (telegram account, upload form).
type Candidate struct {
	ID        int64     `json:"-"`
	PublicID  string    `json:"candidate_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateSource links a candidate to an external identity, such as a
// telegram user ID. (source_type, source_external_id) is unique.
type CandidateSource struct {
	ID               int64     `json:"-"`
	CandidateID      int64     `json:"-"`
	SourceType       string    `json:"source_type"`
	SourceExternalID string    `json:"source_external_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// Assignment is a task candidates submit work against.
type Assignment struct {
	ID          int64     `json:"-"`
	PublicID    string    `json:"assignment_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Submission is one unit of candidate work moving through the pipeline.
// Lease fields are set only while a worker holds a claim; the schema couples
// the three so they are all present or all absent.
type Submission struct {
	ID           int64  `json:"-"`
	PublicID     string `json:"submission_id"`
	CandidateID  int64  `json:"-"`
	AssignmentID int64  `json:"-"`
	Status       Status `json:"status"`

	AttemptTelegramIngest int `json:"attempt_telegram_ingest"`
	AttemptNormalization  int `json:"attempt_normalization"`
	AttemptEvaluation     int `json:"attempt_evaluation"`
	AttemptDelivery       int `json:"attempt_delivery"`

	ClaimedBy      *string    `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	LastErrorCode    *string `json:"last_error_code,omitempty"`
	LastErrorMessage *string `json:"last_error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttemptFor returns the attempt counter for the given stage.
func (s *Submission) AttemptFor(stage Stage) int {
	switch stage {
	case StageTelegramIngest:
		return s.AttemptTelegramIngest
	case StageNormalize:
		return s.AttemptNormalization
	case StageEvaluate:
		return s.AttemptEvaluation
	case StageDeliver:
		return s.AttemptDelivery
	default:
		return 0
	}
}

// SubmissionSource records where a submission arrived from. The unique
// (source_type, source_external_id) pair makes source-driven intake
// idempotent: a replayed telegram update maps back to the same submission.
type SubmissionSource struct {
	ID               int64     `json:"-"`
	SubmissionID     int64     `json:"-"`
	SourceType       string    `json:"source_type"`
	SourceExternalID string    `json:"source_external_id"`
	SourcePayloadRef *string   `json:"source_payload_ref,omitempty"`
	MetadataJSON     []byte    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Artifact is an append-only pointer into blob storage. Stage holds the
// trace label (raw, normalized, evaluation, delivery); the latest artifact
// per (submission, label) is the one with the greatest (created_at, id), and
// rows are never updated or deleted.
type Artifact struct {
	ID            int64     `json:"-"`
	SubmissionID  int64     `json:"-"`
	Stage         string    `json:"stage"`
	Bucket        string    `json:"bucket"`
	ObjectKey     string    `json:"object_key"`
	SchemaVersion *string   `json:"schema_version,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Evaluation is the scored result for a submission. One row per submission;
// re-evaluation overwrites in place.
type Evaluation struct {
	ID                     int64     `json:"-"`
	SubmissionID           int64     `json:"-"`
	Score                  int       `json:"score_1_10"`
	CriteriaScoresJSON     []byte    `json:"-"`
	OrganizerFeedbackJSON  []byte    `json:"-"`
	CandidateFeedbackJSON  []byte    `json:"-"`
	AIAssistanceLikelihood float64   `json:"ai_assistance_likelihood"`
	AIAssistanceConfidence float64   `json:"ai_assistance_confidence"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// LLMRun is an audit record of one model invocation.
type LLMRun struct {
	ID               int64     `json:"-"`
	SubmissionID     int64     `json:"-"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	APIBase          string    `json:"api_base"`
	ChainVersion     string    `json:"chain_version"`
	SpecVersion      string    `json:"spec_version"`
	ResponseLanguage string    `json:"response_language"`
	Temperature      float64   `json:"temperature"`
	Seed             *int64    `json:"seed,omitempty"`
	TokensInput      int64     `json:"tokens_input"`
	TokensOutput     int64     `json:"tokens_output"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Delivery records one attempt to hand results back to the candidate.
type Delivery struct {
	ID                int64     `json:"-"`
	SubmissionID      int64     `json:"-"`
	Channel           string    `json:"channel"`
	Status            string    `json:"status"`
	ExternalMessageID *string   `json:"external_message_id,omitempty"`
	Attempts          int       `json:"attempts"`
	LastErrorCode     *string   `json:"last_error_code,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
