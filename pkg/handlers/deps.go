// Package handlers implements the four stage handlers. Handlers are
// stateless and idempotent: a reclaim after crash re-executes them, so every
// external write either overwrites the same key or dedupes on an ID.
package handlers

import (
	"context"
	"log/slog"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/chain"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/llm"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/telegram"
)

// Records is the read/write store surface handlers use. *store.Store
// implements it; tests substitute fakes.
type Records interface {
	GetSubmission(ctx context.Context, publicID string) (*domain.Submission, error)
	GetSourceForSubmission(ctx context.Context, publicID string) (*domain.SubmissionSource, error)
	LatestArtifact(ctx context.Context, publicID, artifactKey string) (*domain.Artifact, error)
	GetCandidateByID(ctx context.Context, id int64) (*domain.Candidate, error)
	GetAssignmentByID(ctx context.Context, id int64) (*domain.Assignment, error)
	GetEvaluation(ctx context.Context, publicID string) (*domain.Evaluation, error)
	UpsertEvaluation(ctx context.Context, publicID string, params store.UpsertEvaluationParams) error
	InsertLLMRun(ctx context.Context, publicID string, params store.InsertLLMRunParams) error
	InsertDelivery(ctx context.Context, publicID string, params store.InsertDeliveryParams) error
	ListLLMRuns(ctx context.Context, publicID string) ([]*domain.LLMRun, error)
}

// Deps wires concrete clients into the stage handlers.
type Deps struct {
	Records   Records
	Artifacts *artifact.Repository
	Telegram  telegram.Client
	LLM       llm.Client
	Chain     *chain.Spec
	Logger    *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
