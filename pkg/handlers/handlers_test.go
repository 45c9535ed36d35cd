package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/chain"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/llm"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/telegram"
)

const (
	testSubmissionID = "sub_01JF0000000000000000000000"
	testCandidateID  = "cand_01JF0000000000000000000000"
	testAssignmentID = "asg_01JF0000000000000000000000"
)

// fakeRecords is an in-memory Records keyed by the single test submission.
type fakeRecords struct {
	submission *domain.Submission
	source     *domain.SubmissionSource
	artifacts  map[string]*domain.Artifact
	candidate  *domain.Candidate
	assignment *domain.Assignment
	evaluation *domain.Evaluation
	llmRuns    []*domain.LLMRun

	upserted   *store.UpsertEvaluationParams
	runs       []store.InsertLLMRunParams
	deliveries []store.InsertDeliveryParams

	sourceErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		submission: &domain.Submission{
			ID:           1,
			PublicID:     testSubmissionID,
			CandidateID:  1,
			AssignmentID: 1,
		},
		candidate: &domain.Candidate{
			ID:        1,
			PublicID:  testCandidateID,
			FirstName: "Grace",
			LastName:  "Hopper",
		},
		assignment: &domain.Assignment{
			ID:          1,
			PublicID:    testAssignmentID,
			Title:       "REST API task",
			Description: "Build a small REST service",
			IsActive:    true,
		},
		artifacts: make(map[string]*domain.Artifact),
	}
}

func (f *fakeRecords) GetSubmission(ctx context.Context, publicID string) (*domain.Submission, error) {
	if publicID != testSubmissionID {
		return nil, store.ErrNotFound
	}
	return f.submission, nil
}

func (f *fakeRecords) GetSourceForSubmission(ctx context.Context, publicID string) (*domain.SubmissionSource, error) {
	if f.sourceErr != nil {
		return nil, f.sourceErr
	}
	if f.source == nil {
		return nil, store.ErrNotFound
	}
	return f.source, nil
}

func (f *fakeRecords) LatestArtifact(ctx context.Context, publicID, artifactKey string) (*domain.Artifact, error) {
	art, ok := f.artifacts[artifactKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return art, nil
}

func (f *fakeRecords) GetCandidateByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	return f.candidate, nil
}

func (f *fakeRecords) GetAssignmentByID(ctx context.Context, id int64) (*domain.Assignment, error) {
	return f.assignment, nil
}

func (f *fakeRecords) GetEvaluation(ctx context.Context, publicID string) (*domain.Evaluation, error) {
	if f.evaluation == nil {
		return nil, store.ErrNotFound
	}
	return f.evaluation, nil
}

func (f *fakeRecords) UpsertEvaluation(ctx context.Context, publicID string, params store.UpsertEvaluationParams) error {
	f.upserted = &params
	return nil
}

func (f *fakeRecords) InsertLLMRun(ctx context.Context, publicID string, params store.InsertLLMRunParams) error {
	f.runs = append(f.runs, params)
	return nil
}

func (f *fakeRecords) InsertDelivery(ctx context.Context, publicID string, params store.InsertDeliveryParams) error {
	f.deliveries = append(f.deliveries, params)
	return nil
}

func (f *fakeRecords) ListLLMRuns(ctx context.Context, publicID string) ([]*domain.LLMRun, error) {
	return f.llmRuns, nil
}

func (f *fakeRecords) linkArtifact(key, bucket, objectKey, schemaVersion string) {
	art := &domain.Artifact{
		Stage:     key,
		Bucket:    bucket,
		ObjectKey: objectKey,
		CreatedAt: time.Now(),
	}
	if schemaVersion != "" {
		art.SchemaVersion = &schemaVersion
	}
	f.artifacts[key] = art
}

type testEnv struct {
	records  *fakeRecords
	repo     *artifact.Repository
	telegram *telegram.StubClient
	llm      *llm.StubClient
	deps     *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := artifact.NewRepository(artifact.NewMemoryStorage(), artifact.CompatStrict)
	require.NoError(t, err)

	spec, err := chain.Load("../../configs/evaluation_chain.yaml")
	require.NoError(t, err)

	env := &testEnv{
		records:  newFakeRecords(),
		repo:     repo,
		telegram: telegram.NewStubClient(),
		llm:      llm.NewStubClient(),
	}
	env.deps = &Deps{
		Records:   env.records,
		Artifacts: repo,
		Telegram:  env.telegram,
		LLM:       env.llm,
		Chain:     spec,
	}
	return env
}

func testHandlerClaim(stage domain.Stage) *store.Claim {
	return &store.Claim{
		PublicID:       testSubmissionID,
		Stage:          stage,
		Attempt:        1,
		LeaseExpiresAt: time.Now().Add(30 * time.Second),
	}
}
