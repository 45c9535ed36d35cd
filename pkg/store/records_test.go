package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/domain"
)

func evaluationParams(score int) UpsertEvaluationParams {
	return UpsertEvaluationParams{
		Score:                  score,
		CriteriaScoresJSON:     []byte(`[{"id":"correctness","score":8,"reason":"ok"}]`),
		OrganizerFeedbackJSON:  []byte(`{"strengths":["clear"],"issues":[],"recommendations":[]}`),
		CandidateFeedbackJSON:  []byte(`{"summary":"solid","what_went_well":[],"what_to_improve":[]}`),
		AIAssistanceLikelihood: 0.3,
		AIAssistanceConfidence: 0.6,
	}
}

func TestUpsertEvaluationOverwrites(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := seedSubmission(t, st, domain.StatusEvaluationInProgress)

	require.NoError(t, st.UpsertEvaluation(ctx, id, evaluationParams(6)))

	eval, err := st.GetEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, eval.Score)

	// A re-run after reclaim replaces the earlier result, one row per
	// submission.
	require.NoError(t, st.UpsertEvaluation(ctx, id, evaluationParams(9)))

	eval, err = st.GetEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 9, eval.Score)
	assert.InDelta(t, 0.3, eval.AIAssistanceLikelihood, 1e-9)
	assert.JSONEq(t, `[{"id":"correctness","score":8,"reason":"ok"}]`, string(eval.CriteriaScoresJSON))
}

func TestUpsertEvaluationValidatesScoreRange(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := seedSubmission(t, st, domain.StatusEvaluationInProgress)

	assert.Error(t, st.UpsertEvaluation(ctx, id, evaluationParams(0)))
	assert.Error(t, st.UpsertEvaluation(ctx, id, evaluationParams(11)))
}

func TestGetEvaluationNotFound(t *testing.T) {
	st, _ := newTestStore(t)
	id := seedSubmission(t, st, domain.StatusUploaded)

	_, err := st.GetEvaluation(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLLMRunsNewestFirst(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := seedSubmission(t, st, domain.StatusEvaluationInProgress)

	seed := int64(42)
	require.NoError(t, st.InsertLLMRun(ctx, id, InsertLLMRunParams{
		Provider: "stub", Model: "stub-v0", ChainVersion: "chain:v1", SpecVersion: "chain-spec:v1",
		ResponseLanguage: "ru", Temperature: 0.1, Seed: &seed,
		TokensInput: 100, TokensOutput: 200, LatencyMS: 50,
	}))
	require.NoError(t, st.InsertLLMRun(ctx, id, InsertLLMRunParams{
		Provider: "anthropic", Model: "claude-sonnet-4-5", ChainVersion: "chain:v1", SpecVersion: "chain-spec:v1",
		ResponseLanguage: "ru", Temperature: 0.1,
		TokensInput: 128, TokensOutput: 256, LatencyMS: 1200,
	}))

	runs, err := st.ListLLMRuns(ctx, id)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "anthropic", runs[0].Provider)
	assert.Equal(t, "stub", runs[1].Provider)
	require.NotNil(t, runs[1].Seed)
	assert.Equal(t, seed, *runs[1].Seed)
	assert.Nil(t, runs[0].Seed)
}

func TestInsertDelivery(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := seedSubmission(t, st, domain.StatusDeliveryInProgress)

	messageID := "msg-1001"
	require.NoError(t, st.InsertDelivery(ctx, id, InsertDeliveryParams{
		Channel:           "telegram",
		Status:            "sent",
		ExternalMessageID: &messageID,
		Attempts:          1,
	}))

	assert.Error(t, st.InsertDelivery(ctx, id, InsertDeliveryParams{Status: "sent"}))
	assert.Error(t, st.InsertDelivery(ctx, id, InsertDeliveryParams{Channel: "telegram"}))
}

func TestListFeedback(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	candID, asgID := seedIdentities(t, st)
	otherAsg, err := st.CreateAssignment(ctx, "Other task", "")
	require.NoError(t, err)

	evaluated := make([]string, 0, 2)
	for _, assignment := range []string{asgID, otherAsg.PublicID} {
		sub, _, err := st.CreateSubmission(ctx, CreateSubmissionParams{
			CandidatePublicID:  candID,
			AssignmentPublicID: assignment,
			InitialStatus:      domain.StatusUploaded,
		})
		require.NoError(t, err)
		forceStatus(t, st, sub.PublicID, domain.StatusDelivered)
		require.NoError(t, st.UpsertEvaluation(ctx, sub.PublicID, evaluationParams(7)))
		evaluated = append(evaluated, sub.PublicID)
	}

	all, err := st.ListFeedback(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := st.ListFeedback(ctx, asgID, 100)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	row := scoped[0]
	assert.Equal(t, evaluated[0], row.SubmissionPublicID)
	assert.Equal(t, domain.StatusDelivered, row.Status)
	assert.Equal(t, "Ada", row.CandidateFirstName)
	assert.Equal(t, "Queue design task", row.AssignmentTitle)
	assert.Equal(t, 7, row.Score)
	assert.True(t, row.EvaluatedAt.Valid)
	assert.NotEmpty(t, row.CriteriaScoresJSON)

	none, err := st.ListFeedback(ctx, "asg_01JM0000000000000000000009", 100)
	require.NoError(t, err)
	assert.Empty(t, none)
}
