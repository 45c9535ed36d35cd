package api

// CreateCandidateRequest is the HTTP request body for POST /api/v1/candidates.
// When source_type/source_external_id are set the candidate is resolved
// idempotently by that pair.
type CreateCandidateRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name,omitempty"`
	SourceType       string `json:"source_type,omitempty"`
	SourceExternalID string `json:"source_external_id,omitempty"`
}

// CreateAssignmentRequest is the HTTP request body for POST /api/v1/assignments.
type CreateAssignmentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CreateSubmissionRequest is the HTTP request body for POST /api/v1/submissions.
// Content is the raw payload; FileName decides the extension normalization
// dispatches on (defaults to submission.txt). ExternalID is an optional
// idempotency key for the api_upload source row.
type CreateSubmissionRequest struct {
	CandidatePublicID  string `json:"candidate_public_id"`
	AssignmentPublicID string `json:"assignment_public_id"`
	Content            string `json:"content"`
	FileName           string `json:"file_name,omitempty"`
	ExternalID         string `json:"external_id,omitempty"`
}

// CreateExportRequest is the HTTP request body for POST /api/v1/exports.
// An empty assignment filter exports every evaluated submission.
type CreateExportRequest struct {
	AssignmentPublicID string `json:"assignment_public_id,omitempty"`
	Limit              int    `json:"limit,omitempty"`
}
