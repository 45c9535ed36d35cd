package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/handlers"
	"github.com/gradewire/gradewire/pkg/store"
)

// createExportHandler handles POST /api/v1/exports.
// Builds a CSV export artifact from the stored evaluations and returns the
// export id for download.
func (s *Server) createExportHandler(c *echo.Context) error {
	var req CreateExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	feedback, err := s.store.ListFeedback(ctx, req.AssignmentPublicID, req.Limit)
	if err != nil {
		return mapStoreError(err)
	}
	if len(feedback) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no evaluated submissions to export")
	}

	rows := make([]*artifact.ExportRow, 0, len(feedback))
	for _, fb := range feedback {
		row, err := s.exportRow(c, fb)
		if err != nil {
			s.logger.Error("Failed to build export row",
				"submission_id", fb.SubmissionPublicID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to build export")
		}
		rows = append(rows, row)
	}

	exportID := uuid.NewString()
	key, err := s.artifacts.SaveExportRows(ctx, exportID, rows)
	if err != nil {
		s.logger.Error("Failed to persist export", "export_id", exportID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist export")
	}

	s.logger.Info("Export created", "export_id", exportID, "rows", len(rows))
	return c.JSON(http.StatusCreated, &ExportResponse{
		ExportID:  exportID,
		ObjectKey: key,
		RowCount:  len(rows),
	})
}

func (s *Server) exportRow(c *echo.Context, fb *store.FeedbackRow) (*artifact.ExportRow, error) {
	var criteria []handlers.CriterionResult
	if len(fb.CriteriaScoresJSON) > 0 {
		if err := json.Unmarshal(fb.CriteriaScoresJSON, &criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for %s: %w", fb.SubmissionPublicID, err)
		}
	}
	var organizer handlers.OrganizerFeedback
	if len(fb.OrganizerFeedbackJSON) > 0 {
		if err := json.Unmarshal(fb.OrganizerFeedbackJSON, &organizer); err != nil {
			return nil, fmt.Errorf("decode organizer feedback for %s: %w", fb.SubmissionPublicID, err)
		}
	}

	parts := make([]string, 0, len(criteria))
	for _, cr := range criteria {
		parts = append(parts, fmt.Sprintf("%s=%d", cr.ID, cr.Score))
	}

	row := &artifact.ExportRow{
		CandidateIdentifier:  strings.TrimSpace(fb.CandidateFirstName+" "+fb.CandidateLastName) + " (" + fb.CandidatePublicID + ")",
		AssignmentIdentifier: fb.AssignmentTitle + " (" + fb.AssignmentPublicID + ")",
		Score:                fb.Score,
		CriteriaSummary:      strings.Join(parts, ", "),
		Strengths:            strings.Join(organizer.Strengths, "; "),
		Issues:               strings.Join(organizer.Issues, "; "),
		Recommendations:      strings.Join(organizer.Recommendations, "; "),
		SchemaVersion:        artifact.SchemaExportsV1,
	}

	// Chain metadata comes from the audit trail so the export reflects the
	// run that produced the score.
	if runs, err := s.store.ListLLMRuns(c.Request().Context(), fb.SubmissionPublicID); err == nil && len(runs) > 0 {
		row.ChainVersion = runs[0].ChainVersion
		row.Model = runs[0].Model
		row.SpecVersion = runs[0].SpecVersion
		row.ResponseLanguage = runs[0].ResponseLanguage
	}
	return row, nil
}

// downloadExportHandler handles GET /api/v1/exports/:id/download.
func (s *Server) downloadExportHandler(c *echo.Context) error {
	exportID := c.Param("id")
	if exportID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "export id is required")
	}

	payload, err := s.artifacts.LoadExport(c.Request().Context(), exportID+".csv")
	if err != nil {
		if errors.Is(err, artifact.ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "export not found")
		}
		s.logger.Error("Failed to load export", "export_id", exportID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load export")
	}

	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+exportID+`.csv"`)
	return c.Blob(http.StatusOK, "text/csv", payload)
}
