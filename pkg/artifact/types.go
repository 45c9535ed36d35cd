package artifact

import "errors"

// ErrBlobNotFound is returned when a storage key has no blob.
var ErrBlobNotFound = errors.New("artifact blob not found")

// ErrSchemaMismatch is returned when a loaded artifact's schema_version does
// not satisfy the active contract under the configured compat policy.
var ErrSchemaMismatch = errors.New("artifact schema mismatch")

// Schema versions of the v1 payload contracts.
const (
	SchemaNormalizedV1 = "normalized:v1"
	SchemaExportsV1    = "exports:v1"
)

// NormalizedArtifact is produced by the normalize stage and consumed by the
// evaluate stage. The IDs join the payload back to its submission and
// assignment without a database round trip.
type NormalizedArtifact struct {
	SubmissionPublicID string `json:"submission_public_id"`
	AssignmentPublicID string `json:"assignment_public_id"`

	// SourceType is the ingress path that created the raw payload:
	// "api_upload" or "telegram_webhook".
	SourceType string `json:"source_type"`

	// ContentMarkdown is the canonical text used as LLM input after
	// format-specific extraction.
	ContentMarkdown string `json:"content_markdown"`

	// Metadata carries free-form trace data from normalization
	// (parser, mime type, warnings).
	Metadata map[string]string `json:"normalization_metadata"`

	SchemaVersion string `json:"schema_version"`
}

// ExportRow is the stable tabular contract for CSV export.
type ExportRow struct {
	CandidateIdentifier  string `json:"candidate_identifier"`
	AssignmentIdentifier string `json:"assignment_identifier"`
	Score                int    `json:"score_1_10"`

	CriteriaSummary string `json:"criteria_summary"`
	Strengths       string `json:"strengths"`
	Issues          string `json:"issues"`
	Recommendations string `json:"recommendations"`

	// Chain metadata for reproducibility and reporting.
	ChainVersion     string `json:"chain_version"`
	Model            string `json:"model"`
	SpecVersion      string `json:"spec_version"`
	ResponseLanguage string `json:"response_language"`

	SchemaVersion string `json:"schema_version"`
}
