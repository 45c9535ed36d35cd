package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/domain"
)

func TestCreateCandidate(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	cand, err := st.CreateCandidate(ctx, "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, domain.ValidPublicIDWithPrefix(cand.PublicID, "cand"))
	assert.Equal(t, "Ada", cand.FirstName)

	got, err := st.GetCandidate(ctx, cand.PublicID)
	require.NoError(t, err)
	assert.Equal(t, cand.PublicID, got.PublicID)

	_, err = st.CreateCandidate(ctx, "", "")
	assert.Error(t, err)
}

func TestGetCandidateNotFound(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.GetCandidate(context.Background(), "cand_01JM0000000000000000000009")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateCandidateBySourceIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	first, created, err := st.GetOrCreateCandidateBySource(ctx, "telegram", "900001", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := st.GetOrCreateCandidateBySource(ctx, "telegram", "900001", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PublicID, second.PublicID)

	// Same external ID under a different source type is a different identity.
	third, created, err := st.GetOrCreateCandidateBySource(ctx, "api", "900001", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.PublicID, third.PublicID)
}

func TestGetOrCreateCandidateBySourceConcurrent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	const racers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cand, _, err := st.GetOrCreateCandidateBySource(ctx, "telegram", "424242", "Grace", "Hopper")
			assert.NoError(t, err)
			if cand != nil {
				mu.Lock()
				ids[cand.PublicID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "a racing source registration must converge on one candidate")
}

func TestCreateAndListAssignments(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	active, err := st.CreateAssignment(ctx, "REST API task", "Build a small REST service")
	require.NoError(t, err)
	assert.True(t, domain.ValidPublicIDWithPrefix(active.PublicID, "asg"))
	assert.True(t, active.IsActive)

	retired, err := st.CreateAssignment(ctx, "Legacy task", "")
	require.NoError(t, err)
	_, err = st.db.Exec(`UPDATE assignments SET is_active = false WHERE public_id = $1`, retired.PublicID)
	require.NoError(t, err)

	all, err := st.ListAssignments(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := st.ListAssignments(ctx, true)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.PublicID, activeOnly[0].PublicID)

	_, err = st.CreateAssignment(ctx, "", "no title")
	assert.Error(t, err)
}

func TestTelegramChatID(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	cand, _, err := st.GetOrCreateCandidateBySource(ctx, "telegram", "900123", "Ada", "Lovelace")
	require.NoError(t, err)
	asg, err := st.CreateAssignment(ctx, "Queue design task", "")
	require.NoError(t, err)

	sub, _, err := st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  cand.PublicID,
		AssignmentPublicID: asg.PublicID,
		InitialStatus:      domain.StatusTelegramUpdateReceived,
		SourceType:         "telegram_webhook",
		SourceExternalID:   "update-1",
		SourceMetadataJSON: []byte(`{"file_id":"doc-1"}`),
	})
	require.NoError(t, err)

	chatID, err := st.TelegramChatID(ctx, sub.PublicID)
	require.NoError(t, err)
	assert.Equal(t, int64(900123), chatID)
}

func TestTelegramChatIDMissingForAPICandidates(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := seedSubmission(t, st, domain.StatusUploaded)

	_, err := st.TelegramChatID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
