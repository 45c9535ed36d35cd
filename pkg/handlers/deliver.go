package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/worker"
)

// Delivery channels and statuses recorded in the deliveries table.
const (
	ChannelTelegram = "telegram"
	ChannelAPI      = "api"

	DeliveryStatusSent    = "sent"
	DeliveryStatusSkipped = "skipped"
	DeliveryStatusFailed  = "failed"
)

// Deliver renders candidate feedback, notifies the candidate on their
// ingress channel, and writes the organizer export row.
type Deliver struct {
	deps *Deps
}

// NewDeliver creates the deliver handler.
func NewDeliver(deps *Deps) *Deliver {
	return &Deliver{deps: deps}
}

// Stage implements worker.Handler.
func (h *Deliver) Stage() domain.Stage { return domain.StageDeliver }

// Process implements worker.Handler.
func (h *Deliver) Process(ctx context.Context, claim *store.Claim) (*worker.ProcessResult, error) {
	eval, err := h.deps.Records.GetEvaluation(ctx, claim.PublicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeArtifactMissing,
				"evaluation is missing for submission"), nil
		}
		return nil, fmt.Errorf("load evaluation: %w", err)
	}

	sub, err := h.deps.Records.GetSubmission(ctx, claim.PublicID)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	cand, err := h.deps.Records.GetCandidateByID(ctx, sub.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	asg, err := h.deps.Records.GetAssignmentByID(ctx, sub.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	candidateFeedback := CandidateFeedback{}
	if err := json.Unmarshal(eval.CandidateFeedbackJSON, &candidateFeedback); err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError,
			fmt.Sprintf("malformed candidate feedback: %v", err)), nil
	}
	organizerFeedback := OrganizerFeedback{}
	if err := json.Unmarshal(eval.OrganizerFeedbackJSON, &organizerFeedback); err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError,
			fmt.Sprintf("malformed organizer feedback: %v", err)), nil
	}
	var criteria []CriterionResult
	if err := json.Unmarshal(eval.CriteriaScoresJSON, &criteria); err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError,
			fmt.Sprintf("malformed criteria scores: %v", err)), nil
	}

	// No source row means an API upload; any other lookup failure must not
	// downgrade a Telegram-sourced submission to the silent api channel.
	channel := ChannelAPI
	src, err := h.deps.Records.GetSourceForSubmission(ctx, claim.PublicID)
	switch {
	case err == nil && src.SourceType == SourceTypeTelegramWebhook:
		channel = ChannelTelegram
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load submission source: %w", err)
	}

	if channel == ChannelTelegram {
		message := renderCandidateMessage(asg.Title, eval.Score, &candidateFeedback)
		messageID, err := h.deps.Telegram.SendResultNotification(ctx, claim.PublicID, message)
		if err != nil {
			code := string(domain.ErrCodeDeliveryTransport)
			_ = h.deps.Records.InsertDelivery(ctx, claim.PublicID, store.InsertDeliveryParams{
				Channel:       channel,
				Status:        DeliveryStatusFailed,
				Attempts:      claim.Attempt + 1,
				LastErrorCode: &code,
			})
			return failure(domain.KindRetryableTransient, domain.ErrCodeDeliveryTransport, err.Error()), nil
		}
		if err := h.deps.Records.InsertDelivery(ctx, claim.PublicID, store.InsertDeliveryParams{
			Channel:           channel,
			Status:            DeliveryStatusSent,
			ExternalMessageID: &messageID,
			Attempts:          claim.Attempt + 1,
		}); err != nil {
			return nil, fmt.Errorf("persist delivery: %w", err)
		}
	} else {
		// API uploads have no push channel; results are read back over
		// GET /submissions and the feedback listing.
		if err := h.deps.Records.InsertDelivery(ctx, claim.PublicID, store.InsertDeliveryParams{
			Channel:  channel,
			Status:   DeliveryStatusSkipped,
			Attempts: claim.Attempt + 1,
		}); err != nil {
			return nil, fmt.Errorf("persist delivery: %w", err)
		}
	}

	row := h.buildExportRow(ctx, claim.PublicID, cand, asg, eval, criteria, &organizerFeedback)
	key, err := h.deps.Artifacts.SaveExportRows(ctx, claim.PublicID, []*artifact.ExportRow{row})
	if err != nil {
		return nil, fmt.Errorf("save export row: %w", err)
	}

	h.deps.logger().Info("Results delivered",
		"submission_id", claim.PublicID, "channel", channel, "score", eval.Score)

	return &worker.ProcessResult{
		Success: true,
		Detail:  "deliver completed",
		Artifact: &worker.ArtifactRef{
			Bucket:        artifact.BucketExports,
			ObjectKey:     key,
			SchemaVersion: artifact.SchemaExportsV1,
		},
	}, nil
}

func (h *Deliver) buildExportRow(ctx context.Context, publicID string, cand *domain.Candidate, asg *domain.Assignment, eval *domain.Evaluation, criteria []CriterionResult, organizer *OrganizerFeedback) *artifact.ExportRow {
	row := &artifact.ExportRow{
		CandidateIdentifier:  cand.FirstName + " " + cand.LastName + " (" + cand.PublicID + ")",
		AssignmentIdentifier: asg.Title + " (" + asg.PublicID + ")",
		Score:                eval.Score,
		CriteriaSummary:      summarizeCriteria(criteria),
		Strengths:            strings.Join(organizer.Strengths, "; "),
		Issues:               strings.Join(organizer.Issues, "; "),
		Recommendations:      strings.Join(organizer.Recommendations, "; "),
		SchemaVersion:        artifact.SchemaExportsV1,
	}

	// Chain metadata comes from the audit trail so the export reflects the
	// run that produced the score, not the currently loaded chain.
	if runs, err := h.deps.Records.ListLLMRuns(ctx, publicID); err == nil && len(runs) > 0 {
		row.ChainVersion = runs[0].ChainVersion
		row.Model = runs[0].Model
		row.SpecVersion = runs[0].SpecVersion
		row.ResponseLanguage = runs[0].ResponseLanguage
	} else if h.deps.Chain != nil {
		row.ChainVersion = h.deps.Chain.ChainVersion
		row.Model = h.deps.Chain.Model
		row.SpecVersion = h.deps.Chain.SpecVersion
		row.ResponseLanguage = h.deps.Chain.Runtime.ResponseLanguage
	}
	return row
}

func summarizeCriteria(criteria []CriterionResult) string {
	parts := make([]string, 0, len(criteria))
	for _, c := range criteria {
		parts = append(parts, fmt.Sprintf("%s=%d", c.ID, c.Score))
	}
	return strings.Join(parts, ", ")
}

func renderCandidateMessage(assignmentTitle string, score int, fb *CandidateFeedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your submission for %q has been evaluated.\n", assignmentTitle)
	fmt.Fprintf(&b, "Score: %d/10\n\n", score)
	if fb.Summary != "" {
		b.WriteString(fb.Summary + "\n")
	}
	if len(fb.WhatWentWell) > 0 {
		b.WriteString("\nWhat went well:\n")
		for _, item := range fb.WhatWentWell {
			b.WriteString("- " + item + "\n")
		}
	}
	if len(fb.WhatToImprove) > 0 {
		b.WriteString("\nWhat to improve:\n")
		for _, item := range fb.WhatToImprove {
			b.WriteString("- " + item + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}
