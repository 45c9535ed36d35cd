package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// createCandidateHandler handles POST /api/v1/candidates.
// With a source pair the candidate is resolved idempotently; a replay returns
// the existing row with created=false.
func (s *Server) createCandidateHandler(c *echo.Context) error {
	var req CreateCandidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if (req.SourceType == "") != (req.SourceExternalID == "") {
		return echo.NewHTTPError(http.StatusBadRequest, "source_type and source_external_id must be set together")
	}

	if req.SourceType != "" {
		candidate, created, err := s.store.GetOrCreateCandidateBySource(
			c.Request().Context(), req.SourceType, req.SourceExternalID, req.FirstName, req.LastName)
		if err != nil {
			return mapStoreError(err)
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return c.JSON(status, &CandidateResponse{Candidate: candidate, Created: created})
	}

	if req.FirstName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "first_name is required")
	}
	candidate, err := s.store.CreateCandidate(c.Request().Context(), req.FirstName, req.LastName)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusCreated, &CandidateResponse{Candidate: candidate, Created: true})
}

// getCandidateHandler handles GET /api/v1/candidates/:id.
func (s *Server) getCandidateHandler(c *echo.Context) error {
	publicID := c.Param("id")
	if publicID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "candidate id is required")
	}

	candidate, err := s.store.GetCandidate(c.Request().Context(), publicID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, candidate)
}
