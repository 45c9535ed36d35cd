package api

import (
	"encoding/json"
	"time"

	"github.com/gradewire/gradewire/pkg/database"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/worker"
)

// CandidateResponse is returned by the candidate endpoints. Created is false
// when a source pair resolved to an existing candidate.
type CandidateResponse struct {
	Candidate *domain.Candidate `json:"candidate"`
	Created   bool              `json:"created"`
}

// SubmissionResponse is returned by the intake endpoints.
type SubmissionResponse struct {
	Submission *domain.Submission `json:"submission"`
	Created    bool               `json:"created"`
}

// SubmissionDetailResponse is returned by GET /api/v1/submissions/:id.
type SubmissionDetailResponse struct {
	Submission *domain.Submission `json:"submission"`
	Artifacts  []*domain.Artifact `json:"artifacts"`
}

// RequeueResponse is returned by POST /api/v1/submissions/:id/requeue.
type RequeueResponse struct {
	SubmissionID string        `json:"submission_id"`
	From         domain.Status `json:"from"`
	To           domain.Status `json:"to"`
}

// FeedbackEntry is one evaluated submission in GET /api/v1/feedback.
type FeedbackEntry struct {
	SubmissionID           string          `json:"submission_id"`
	Status                 domain.Status   `json:"status"`
	CandidateID            string          `json:"candidate_id"`
	CandidateName          string          `json:"candidate_name"`
	AssignmentID           string          `json:"assignment_id"`
	AssignmentTitle        string          `json:"assignment_title"`
	Score                  int             `json:"score_1_10"`
	OrganizerFeedback      json.RawMessage `json:"organizer_feedback,omitempty"`
	CandidateFeedback      json.RawMessage `json:"candidate_feedback,omitempty"`
	AIAssistanceLikelihood float64         `json:"ai_assistance_likelihood"`
	AIAssistanceConfidence float64         `json:"ai_assistance_confidence"`
	EvaluatedAt            *time.Time      `json:"evaluated_at,omitempty"`
}

// ExportResponse is returned by POST /api/v1/exports.
type ExportResponse struct {
	ExportID  string `json:"export_id"`
	ObjectKey string `json:"object_key"`
	RowCount  int    `json:"row_count"`
}

// HealthCheck is one component entry in HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Checks   map[string]HealthCheck `json:"checks"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Status  string                    `json:"status"`
	Runners map[string]worker.Metrics `json:"runners,omitempty"`
}
