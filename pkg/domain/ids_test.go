package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPublicIDs(t *testing.T) {
	sub := NewSubmissionID()
	cand := NewCandidateID()
	asg := NewAssignmentID()

	assert.True(t, strings.HasPrefix(sub, "sub_"))
	assert.True(t, strings.HasPrefix(cand, "cand_"))
	assert.True(t, strings.HasPrefix(asg, "asg_"))

	for _, id := range []string{sub, cand, asg} {
		assert.True(t, ValidPublicID(id), "%s should match the pattern", id)
	}

	// ULIDs are unique per call.
	assert.NotEqual(t, sub, NewSubmissionID())
}

func TestValidPublicID(t *testing.T) {
	assert.False(t, ValidPublicID("sub_short"))
	assert.False(t, ValidPublicID("user_01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	// Crockford base32 excludes I, L, O, U.
	assert.False(t, ValidPublicID("sub_01ARZ3NDEKTSV4RRFFQ69G5FAI"))
	assert.False(t, ValidPublicID(""))
}

func TestValidPublicIDWithPrefix(t *testing.T) {
	sub := NewSubmissionID()
	assert.True(t, ValidPublicIDWithPrefix(sub, SubmissionIDPrefix))
	assert.False(t, ValidPublicIDWithPrefix(sub, CandidateIDPrefix))
	assert.False(t, ValidPublicIDWithPrefix(NewCandidateID(), SubmissionIDPrefix))
}
