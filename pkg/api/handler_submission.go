package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/handlers"
	"github.com/gradewire/gradewire/pkg/store"
)

// createSubmissionHandler handles POST /api/v1/submissions.
// Accepts the payload inline as JSON, writes it to the raw bucket, and
// creates the submission in the uploaded state so normalization picks it up.
func (s *Server) createSubmissionHandler(c *echo.Context) error {
	var req CreateSubmissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if len(req.Content) > MaxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("content exceeds maximum size of %d bytes", MaxUploadSize))
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "submission.txt"
	}
	return s.intakeUpload(c, req.CandidatePublicID, req.AssignmentPublicID,
		req.ExternalID, fileName, []byte(req.Content))
}

// uploadSubmissionFileHandler handles POST /api/v1/submissions/file.
// Multipart variant of intake: the payload arrives as a "file" part alongside
// candidate_public_id / assignment_public_id / external_id form fields.
func (s *Server) uploadSubmissionFileHandler(c *echo.Context) error {
	r := c.Request()
	r.Body = http.MaxBytesReader(c.Response(), r.Body, MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part is required")
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", MaxUploadSize))
	}
	if len(payload) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is empty")
	}

	fileName := path.Base(header.Filename)
	if fileName == "" || fileName == "." {
		fileName = "submission.txt"
	}
	return s.intakeUpload(c, r.FormValue("candidate_public_id"), r.FormValue("assignment_public_id"),
		r.FormValue("external_id"), fileName, payload)
}

// intakeUpload is the shared tail of both upload endpoints: create the
// submission idempotently, persist the raw blob, and link the trace entry.
// A replayed external_id returns the existing submission untouched.
func (s *Server) intakeUpload(c *echo.Context, candidateID, assignmentID, externalID, fileName string, payload []byte) error {
	if candidateID == "" || assignmentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "candidate_public_id and assignment_public_id are required")
	}
	ext := strings.ToLower(path.Ext(fileName))
	if !handlers.SupportedFormat(ext) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported file extension %q: only .txt and .md are accepted", ext))
	}
	if externalID == "" {
		externalID = uuid.NewString()
	}

	ctx := c.Request().Context()
	sub, created, err := s.store.CreateSubmission(ctx, store.CreateSubmissionParams{
		CandidatePublicID:  candidateID,
		AssignmentPublicID: assignmentID,
		InitialStatus:      domain.StatusUploaded,
		SourceType:         handlers.SourceTypeAPIUpload,
		SourceExternalID:   externalID,
	})
	if err != nil {
		return mapStoreError(err)
	}
	if !created {
		return c.JSON(http.StatusOK, &SubmissionResponse{Submission: sub, Created: false})
	}

	key, err := s.artifacts.SaveRaw(ctx, sub.PublicID, ext, payload)
	if err != nil {
		s.logger.Error("Failed to persist raw upload", "submission_id", sub.PublicID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist upload")
	}
	if err := s.store.LinkArtifact(ctx, sub.PublicID, domain.ArtifactKeyRaw, artifact.BucketRaw, key, nil); err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusCreated, &SubmissionResponse{Submission: sub, Created: true})
}

// getSubmissionHandler handles GET /api/v1/submissions/:id.
// Returns the submission with its attempt counters, lease fields, last error,
// and the full artifact trace oldest first.
func (s *Server) getSubmissionHandler(c *echo.Context) error {
	publicID := c.Param("id")
	if publicID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "submission id is required")
	}

	ctx := c.Request().Context()
	sub, err := s.store.GetSubmission(ctx, publicID)
	if err != nil {
		return mapStoreError(err)
	}
	artifacts, err := s.store.ListArtifacts(ctx, publicID)
	if err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, &SubmissionDetailResponse{Submission: sub, Artifacts: artifacts})
}

// listSubmissionsHandler handles GET /api/v1/submissions.
func (s *Server) listSubmissionsHandler(c *echo.Context) error {
	filter := store.ListSubmissionsFilter{}

	if v := c.QueryParam("status"); v != "" {
		if !domain.ValidStatus(domain.Status(v)) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+v)
		}
		filter.Status = domain.Status(v)
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	subs, err := s.store.ListSubmissions(c.Request().Context(), filter)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, subs)
}

// requeueSubmissionHandler handles POST /api/v1/submissions/:id/requeue.
// Operator edge: moves a parked failed_* submission back to the stage's pre
// state so workers pick it up again. Dead-lettered submissions stay parked.
func (s *Server) requeueSubmissionHandler(c *echo.Context) error {
	publicID := c.Param("id")
	if publicID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "submission id is required")
	}

	ctx := c.Request().Context()
	sub, err := s.store.GetSubmission(ctx, publicID)
	if err != nil {
		return mapStoreError(err)
	}

	target, ok := requeueTarget(sub.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("submission in state %q cannot be requeued", sub.Status))
	}

	moved, err := s.store.TransitionState(ctx, publicID, sub.Status, target)
	if err != nil {
		return mapStoreError(err)
	}
	if !moved {
		// Lost a race with a concurrent transition.
		return echo.NewHTTPError(http.StatusConflict, "submission state changed, retry")
	}

	s.logger.Info("Submission requeued", "submission_id", publicID, "from", sub.Status, "to", target)
	return c.JSON(http.StatusOK, &RequeueResponse{SubmissionID: publicID, From: sub.Status, To: target})
}

// requeueTarget maps a parked failure state to the stage's pre state.
func requeueTarget(status domain.Status) (domain.Status, bool) {
	for _, stage := range domain.AllStages {
		lc := domain.MustLifecycleFor(stage)
		if lc.Failed == status {
			return lc.Pre, true
		}
	}
	return "", false
}
