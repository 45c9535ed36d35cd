package artifact

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeNormalized serializes a normalized artifact to its wire form.
func EncodeNormalized(a *NormalizedArtifact) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode normalized artifact: %w", err)
	}
	return data, nil
}

// DecodeNormalized parses a normalized artifact payload. Schema validation
// is the repository's job, not the codec's.
func DecodeNormalized(payload []byte) (*NormalizedArtifact, error) {
	a := &NormalizedArtifact{}
	if err := json.Unmarshal(payload, a); err != nil {
		return nil, fmt.Errorf("failed to decode normalized artifact: %w", err)
	}
	return a, nil
}

var exportHeader = []string{
	"candidate_identifier", "assignment_identifier", "score_1_10",
	"criteria_summary", "strengths", "issues", "recommendations",
	"chain_version", "model", "spec_version", "response_language",
	"schema_version",
}

// EncodeExportRows serializes export rows as CSV with a header line. An
// empty slice encodes to an empty payload.
func EncodeExportRows(rows []*ExportRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.CandidateIdentifier, r.AssignmentIdentifier, strconv.Itoa(r.Score),
			r.CriteriaSummary, r.Strengths, r.Issues, r.Recommendations,
			r.ChainVersion, r.Model, r.SpecVersion, r.ResponseLanguage,
			r.SchemaVersion,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export rows: %w", err)
	}
	return buf.Bytes(), nil
}
