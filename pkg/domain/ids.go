// Package domain defines the submission lifecycle model: public identifiers,
// the status machine, per-stage lifecycle tuples, and the error taxonomy
// shared by the API surface and the workers.
package domain

import (
	"crypto/rand"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

// Public identifier prefixes. The prefix makes an ID self-describing in logs
// and in external payloads; the suffix is a Crockford base32 ULID.
const (
	SubmissionIDPrefix = "sub"
	CandidateIDPrefix  = "cand"
	AssignmentIDPrefix = "asg"
)

// PublicIDPattern matches any well-formed public identifier.
var PublicIDPattern = regexp.MustCompile(`^(sub|cand|asg)_[0-9A-HJKMNP-TV-Z]{26}$`)

// NewSubmissionID returns a fresh submission public ID.
func NewSubmissionID() string { return newPublicID(SubmissionIDPrefix) }

// NewCandidateID returns a fresh candidate public ID.
func NewCandidateID() string { return newPublicID(CandidateIDPrefix) }

// NewAssignmentID returns a fresh assignment public ID.
func NewAssignmentID() string { return newPublicID(AssignmentIDPrefix) }

func newPublicID(prefix string) string {
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ValidPublicID reports whether id is a well-formed public identifier of any
// entity type.
func ValidPublicID(id string) bool {
	return PublicIDPattern.MatchString(id)
}

// ValidPublicIDWithPrefix reports whether id is well-formed and carries the
// given prefix.
func ValidPublicIDWithPrefix(id, prefix string) bool {
	return ValidPublicID(id) && len(id) > len(prefix) && id[:len(prefix)+1] == prefix+"_"
}
