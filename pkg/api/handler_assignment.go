package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// createAssignmentHandler handles POST /api/v1/assignments.
func (s *Server) createAssignmentHandler(c *echo.Context) error {
	var req CreateAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	assignment, err := s.store.CreateAssignment(c.Request().Context(), req.Title, req.Description)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusCreated, assignment)
}

// getAssignmentHandler handles GET /api/v1/assignments/:id.
func (s *Server) getAssignmentHandler(c *echo.Context) error {
	publicID := c.Param("id")
	if publicID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment id is required")
	}

	assignment, err := s.store.GetAssignment(c.Request().Context(), publicID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, assignment)
}

// listAssignmentsHandler handles GET /api/v1/assignments.
func (s *Server) listAssignmentsHandler(c *echo.Context) error {
	activeOnly := c.QueryParam("active_only") == "true"

	assignments, err := s.store.ListAssignments(c.Request().Context(), activeOnly)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, assignments)
}
