package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/handlers"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/telegram"
)

// telegramWebhookHandler handles POST /webhooks/telegram.
// Replays of the same update_id return the existing submission; telegram
// retries webhooks aggressively, so this endpoint must be idempotent.
// Updates without a document are acknowledged and dropped so telegram stops
// redelivering them.
func (s *Server) telegramWebhookHandler(c *echo.Context) error {
	var update telegram.Update
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if update.UpdateID == 0 || update.Message == nil || update.Message.From == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "update_id and message.from are required")
	}

	msg := update.Message
	if msg.Document == nil || msg.Document.FileID == "" {
		s.logger.Info("Ignoring telegram update without document", "update_id", update.UpdateID)
		return c.JSON(http.StatusOK, map[string]string{"result": "ignored"})
	}

	assignmentID := c.QueryParam("assignment_id")
	if assignmentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment_id query parameter is required")
	}

	ctx := c.Request().Context()
	candidate, _, err := s.store.GetOrCreateCandidateBySource(ctx,
		"telegram", strconv.FormatInt(msg.From.ID, 10), msg.From.FirstName, msg.From.LastName)
	if err != nil {
		return mapStoreError(err)
	}

	metadata, err := json.Marshal(map[string]string{
		"file_id":   msg.Document.FileID,
		"file_name": msg.Document.FileName,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	sub, created, err := s.store.CreateSubmission(ctx, store.CreateSubmissionParams{
		CandidatePublicID:  candidate.PublicID,
		AssignmentPublicID: assignmentID,
		InitialStatus:      domain.StatusTelegramUpdateReceived,
		SourceType:         handlers.SourceTypeTelegramWebhook,
		SourceExternalID:   strconv.FormatInt(update.UpdateID, 10),
		SourceMetadataJSON: metadata,
	})
	if err != nil {
		return mapStoreError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Info("Telegram submission accepted",
			"submission_id", sub.PublicID, "update_id", update.UpdateID, "candidate_id", candidate.PublicID)
	}
	return c.JSON(status, &SubmissionResponse{Submission: sub, Created: created})
}
