package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/domain"
)

func seedIdentities(t *testing.T, st *Store) (candidateID, assignmentID string) {
	t.Helper()
	ctx := context.Background()
	cand, err := st.CreateCandidate(ctx, "Ada", "Lovelace")
	require.NoError(t, err)
	asg, err := st.CreateAssignment(ctx, "Queue design task", "Design a durable work queue")
	require.NoError(t, err)
	return cand.PublicID, asg.PublicID
}

func TestCreateSubmissionValidation(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	candID, asgID := seedIdentities(t, st)

	_, _, err := st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  candID,
		AssignmentPublicID: asgID,
		InitialStatus:      domain.StatusNormalized,
	})
	assert.Error(t, err, "only ingress statuses may start a submission")

	_, _, err = st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  candID,
		AssignmentPublicID: asgID,
		InitialStatus:      domain.StatusUploaded,
		SourceType:         "telegram_webhook",
	})
	assert.Error(t, err, "source type and external id are set together")

	_, _, err = st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  "cand_01JM0000000000000000000009",
		AssignmentPublicID: asgID,
		InitialStatus:      domain.StatusUploaded,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSubmissionSourceReplay(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	candID, asgID := seedIdentities(t, st)

	params := CreateSubmissionParams{
		CandidatePublicID:  candID,
		AssignmentPublicID: asgID,
		InitialStatus:      domain.StatusTelegramUpdateReceived,
		SourceType:         "telegram_webhook",
		SourceExternalID:   "update-77",
		SourceMetadataJSON: []byte(`{"file_id":"doc-1","file_name":"solution.md"}`),
	}

	first, created, err := st.CreateSubmission(ctx, params)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, domain.ValidPublicIDWithPrefix(first.PublicID, domain.SubmissionIDPrefix))

	replay, created, err := st.CreateSubmission(ctx, params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PublicID, replay.PublicID)

	bySource, err := st.GetSubmissionBySource(ctx, "telegram_webhook", "update-77")
	require.NoError(t, err)
	assert.Equal(t, first.PublicID, bySource.PublicID)
}

func TestGetSourceForSubmission(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	candID, asgID := seedIdentities(t, st)

	sub, _, err := st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  candID,
		AssignmentPublicID: asgID,
		InitialStatus:      domain.StatusTelegramUpdateReceived,
		SourceType:         "telegram_webhook",
		SourceExternalID:   "update-78",
		SourceMetadataJSON: []byte(`{"file_id":"doc-9","file_name":"solution.txt"}`),
	})
	require.NoError(t, err)

	src, err := st.GetSourceForSubmission(ctx, sub.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "telegram_webhook", src.SourceType)
	assert.Equal(t, "update-78", src.SourceExternalID)
	assert.JSONEq(t, `{"file_id":"doc-9","file_name":"solution.txt"}`, string(src.MetadataJSON))
}

func TestGetSourceForSubmissionWithoutSource(t *testing.T) {
	st, _ := newTestStore(t)
	id := seedSubmission(t, st, domain.StatusUploaded)

	_, err := st.GetSourceForSubmission(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSubmissionRejectsMalformedID(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.GetSubmission(context.Background(), "sub_short")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = st.GetSubmission(context.Background(), "sub_01JM0000000000000000000009")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSubmissions(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	candID, asgID := seedIdentities(t, st)

	var ids []string
	for i := 0; i < 3; i++ {
		sub, _, err := st.CreateSubmission(ctx, CreateSubmissionParams{
			CandidatePublicID:  candID,
			AssignmentPublicID: asgID,
			InitialStatus:      domain.StatusUploaded,
		})
		require.NoError(t, err)
		ids = append(ids, sub.PublicID)
	}
	forceStatus(t, st, ids[0], domain.StatusDelivered)

	all, err := st.ListSubmissions(ctx, ListSubmissionsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	uploaded, err := st.ListSubmissions(ctx, ListSubmissionsFilter{Status: domain.StatusUploaded})
	require.NoError(t, err)
	assert.Len(t, uploaded, 2)

	limited, err := st.ListSubmissions(ctx, ListSubmissionsFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].PublicID, "newest first")

	_, err = st.ListSubmissions(ctx, ListSubmissionsFilter{Status: domain.Status("archived")})
	assert.Error(t, err)
}
