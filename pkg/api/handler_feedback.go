package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/store"
)

// listFeedbackHandler handles GET /api/v1/feedback.
// Returns evaluated submissions with their stored feedback documents,
// optionally filtered by assignment.
func (s *Server) listFeedbackHandler(c *echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.store.ListFeedback(c.Request().Context(), c.QueryParam("assignment_id"), limit)
	if err != nil {
		return mapStoreError(err)
	}

	entries := make([]*FeedbackEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, feedbackEntry(row))
	}
	return c.JSON(http.StatusOK, entries)
}

func feedbackEntry(row *store.FeedbackRow) *FeedbackEntry {
	entry := &FeedbackEntry{
		SubmissionID:           row.SubmissionPublicID,
		Status:                 row.Status,
		CandidateID:            row.CandidatePublicID,
		CandidateName:          strings.TrimSpace(row.CandidateFirstName + " " + row.CandidateLastName),
		AssignmentID:           row.AssignmentPublicID,
		AssignmentTitle:        row.AssignmentTitle,
		Score:                  row.Score,
		OrganizerFeedback:      row.OrganizerFeedbackJSON,
		CandidateFeedback:      row.CandidateFeedbackJSON,
		AIAssistanceLikelihood: row.AIAssistanceLikelihood,
		AIAssistanceConfidence: row.AIAssistanceConfidence,
	}
	if row.EvaluatedAt.Valid {
		t := row.EvaluatedAt.Time
		entry.EvaluatedAt = &t
	}
	return entry
}
