package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/chain"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/llm"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/worker"
)

// Evaluate runs the evaluation chain against the normalized artifact: render
// prompts, invoke the model, validate the response against the chain's
// schema, compute the deterministic score, and persist evaluation and audit
// rows.
type Evaluate struct {
	deps *Deps
}

// NewEvaluate creates the evaluate handler.
func NewEvaluate(deps *Deps) *Evaluate {
	return &Evaluate{deps: deps}
}

// Stage implements worker.Handler.
func (h *Evaluate) Stage() domain.Stage { return domain.StageEvaluate }

// CriterionResult is one scored rubric entry from the model response.
type CriterionResult struct {
	ID     string `json:"id"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// OrganizerFeedback is the organizer-facing feedback section.
type OrganizerFeedback struct {
	Strengths       []string `json:"strengths"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// CandidateFeedback is the candidate-facing feedback section.
type CandidateFeedback struct {
	Summary       string   `json:"summary"`
	WhatWentWell  []string `json:"what_went_well"`
	WhatToImprove []string `json:"what_to_improve"`
}

// AIAssistance is the AI-likelihood section.
type AIAssistance struct {
	Likelihood float64 `json:"likelihood"`
	Confidence float64 `json:"confidence"`
	Disclaimer string  `json:"disclaimer"`
}

// chainResponse is the typed shape of a schema-valid model response.
type chainResponse struct {
	Criteria          []CriterionResult `json:"criteria"`
	OrganizerFeedback OrganizerFeedback `json:"organizer_feedback"`
	CandidateFeedback CandidateFeedback `json:"candidate_feedback"`
	AIAssistance      AIAssistance      `json:"ai_assistance"`
}

// Process implements worker.Handler.
func (h *Evaluate) Process(ctx context.Context, claim *store.Claim) (*worker.ProcessResult, error) {
	spec := h.deps.Chain

	normArt, err := h.deps.Records.LatestArtifact(ctx, claim.PublicID, domain.ArtifactKeyNormalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeArtifactMissing,
				"normalized artifact is missing"), nil
		}
		return nil, fmt.Errorf("look up normalized artifact: %w", err)
	}

	normalized, err := h.deps.Artifacts.LoadNormalized(ctx, normArt.ObjectKey)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrBlobNotFound):
			return failure(domain.KindPermanentBadInput, domain.ErrCodeArtifactMissing, err.Error()), nil
		case errors.Is(err, artifact.ErrSchemaMismatch):
			return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError, err.Error()), nil
		default:
			return nil, fmt.Errorf("load normalized artifact: %w", err)
		}
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

	userPrompt, err := spec.RenderUserPrompt(map[string]any{
		"submission_markdown":    normalized.ContentMarkdown,
		"assignment_title":       asg.Title,
		"assignment_description": asg.Description,
		"candidate_name":         cand.FirstName + " " + cand.LastName,
	})
	if err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeInternalError,
			fmt.Sprintf("render user prompt: %v", err)), nil
	}

	result, err := h.deps.LLM.Evaluate(ctx, llm.Request{
		Model:        spec.Model,
		SystemPrompt: spec.Prompts.System,
		UserPrompt:   userPrompt,
		Temperature:  spec.Runtime.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return failure(domain.KindRetryableTransient, domain.ErrCodeLLMProviderUnavailable, err.Error()), nil
	}

	if err := spec.ValidateResponse(result.RawJSON); err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeSchemaValidationFailed, err.Error()), nil
	}

	response, err := decodeChainResponse(result.RawJSON)
	if err != nil {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeSchemaValidationFailed, err.Error()), nil
	}

	scores := make([]chain.CriterionScore, 0, len(response.Criteria))
	for _, c := range response.Criteria {
		scores = append(scores, chain.CriterionScore{
			ID:     c.ID,
			Score:  c.Score,
			Weight: spec.WeightByID(c.ID),
		})
	}
	score := chain.DeterministicScore(scores)

	criteriaJSON, _ := json.Marshal(response.Criteria)
	organizerJSON, _ := json.Marshal(response.OrganizerFeedback)
	candidateJSON, _ := json.Marshal(response.CandidateFeedback)

	if err := h.deps.Records.UpsertEvaluation(ctx, claim.PublicID, store.UpsertEvaluationParams{
		Score:                  score,
		CriteriaScoresJSON:     criteriaJSON,
		OrganizerFeedbackJSON:  organizerJSON,
		CandidateFeedbackJSON:  candidateJSON,
		AIAssistanceLikelihood: response.AIAssistance.Likelihood,
		AIAssistanceConfidence: response.AIAssistance.Confidence,
	}); err != nil {
		return nil, fmt.Errorf("persist evaluation: %w", err)
	}

	if err := h.deps.Records.InsertLLMRun(ctx, claim.PublicID, store.InsertLLMRunParams{
		Provider:         h.deps.LLM.Provider(),
		Model:            spec.Model,
		ChainVersion:     spec.ChainVersion,
		SpecVersion:      spec.SpecVersion,
		ResponseLanguage: spec.Runtime.ResponseLanguage,
		Temperature:      spec.Runtime.Temperature,
		Seed:             spec.Runtime.Seed,
		TokensInput:      result.TokensInput,
		TokensOutput:     result.TokensOutput,
		LatencyMS:        result.LatencyMS,
	}); err != nil {
		return nil, fmt.Errorf("persist llm run: %w", err)
	}

	key, err := h.deps.Artifacts.SaveEvaluation(ctx, claim.PublicID, []byte(result.RawText))
	if err != nil {
		return nil, fmt.Errorf("save evaluation artifact: %w", err)
	}

	h.deps.logger().Info("Submission evaluated",
		"submission_id", claim.PublicID, "score", score, "model", spec.Model)

	return &worker.ProcessResult{
		Success: true,
		Detail:  "evaluate completed",
		Artifact: &worker.ArtifactRef{
			Bucket:        artifact.BucketEval,
			ObjectKey:     key,
			SchemaVersion: spec.ChainVersion,
		},
	}, nil
}

func decodeChainResponse(payload map[string]any) (*chainResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encode model response: %w", err)
	}
	response := &chainResponse{}
	if err := json.Unmarshal(raw, response); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(response.Criteria) == 0 {
		return nil, fmt.Errorf("model response contains no criteria")
	}
	return response, nil
}
