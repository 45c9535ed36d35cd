package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/test/util"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db := util.SetupTestDatabase(t)
	return New(db, nil), db
}

// seedSubmission creates a candidate, an assignment, and one submission in
// the given status, returning the submission public ID.
func seedSubmission(t *testing.T, st *Store, status domain.Status) string {
	t.Helper()
	ctx := context.Background()

	cand, err := st.CreateCandidate(ctx, "Ada", "Lovelace")
	require.NoError(t, err)
	asg, err := st.CreateAssignment(ctx, "Queue design task", "Design a durable work queue")
	require.NoError(t, err)

	sub, created, err := st.CreateSubmission(ctx, CreateSubmissionParams{
		CandidatePublicID:  cand.PublicID,
		AssignmentPublicID: asg.PublicID,
		InitialStatus:      domain.StatusUploaded,
	})
	require.NoError(t, err)
	require.True(t, created)

	if status != domain.StatusUploaded {
		forceStatus(t, st, sub.PublicID, status)
	}
	return sub.PublicID
}

// forceStatus puts a row into an arbitrary status, bypassing the transition
// guard. Test setup only.
func forceStatus(t *testing.T, st *Store, publicID string, status domain.Status) {
	t.Helper()
	_, err := st.db.Exec(`UPDATE submissions SET status = $2 WHERE public_id = $1`, publicID, string(status))
	require.NoError(t, err)
}

// expireLease backdates the lease so reclaim and ownership checks see it as
// expired.
func expireLease(t *testing.T, st *Store, publicID string) {
	t.Helper()
	_, err := st.db.Exec(
		`UPDATE submissions SET lease_expires_at = now() - interval '1 second' WHERE public_id = $1`, publicID)
	require.NoError(t, err)
}

func setAttempt(t *testing.T, st *Store, publicID, column string, value int) {
	t.Helper()
	switch column {
	case "attempt_telegram_ingest", "attempt_normalization", "attempt_evaluation", "attempt_delivery":
	default:
		t.Fatalf("unknown attempt column %q", column)
	}
	_, err := st.db.Exec(`UPDATE submissions SET `+column+` = $2 WHERE public_id = $1`, publicID, value)
	require.NoError(t, err)
}
