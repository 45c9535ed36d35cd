// Package worker drives the stage pipeline: each tick reclaims expired
// leases, claims one submission, runs the stage handler under a heartbeat,
// and finalizes through the store's conditional updates.
package worker

import (
	"context"

	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/store"
)

// ArtifactRef points at a blob the handler produced.
type ArtifactRef struct {
	Bucket        string
	ObjectKey     string
	SchemaVersion string
}

// ProcessResult is the outcome of one handler invocation. On failure, Kind
// classifies the error for retry policy and Code is the canonical error code
// persisted on the submission; an empty Code falls back to the kind string.
type ProcessResult struct {
	Success  bool
	Detail   string
	Kind     domain.ErrorKind
	Code     domain.ErrorCode
	Artifact *ArtifactRef
}

// Handler processes one claimed submission. Implementations must be
// stateless and idempotent: a reclaim after crash re-executes external side
// effects. The context is cancelled on lease loss and on shutdown; handlers
// must honor it.
type Handler interface {
	Stage() domain.Stage
	Process(ctx context.Context, claim *store.Claim) (*ProcessResult, error)
}

// ClaimStore is the subset of the store the worker loop uses.
type ClaimStore interface {
	ClaimNext(ctx context.Context, stage domain.Stage, workerID string, leaseSeconds int) (*store.Claim, error)
	HeartbeatClaim(ctx context.Context, stage domain.Stage, publicID, workerID string, leaseSeconds int) (bool, error)
	FinalizeSuccess(ctx context.Context, stage domain.Stage, publicID, workerID string) (bool, error)
	FinalizeFailureRetry(ctx context.Context, stage domain.Stage, publicID, workerID string, errorCode domain.ErrorCode, errorMessage string, maxAttempts int) (bool, error)
	FinalizeFailureTerminal(ctx context.Context, stage domain.Stage, publicID, workerID string, errorCode domain.ErrorCode, errorMessage string) (bool, error)
	ReclaimExpiredRetry(ctx context.Context, stage domain.Stage, maxAttempts, limit int) ([]string, error)
	ReclaimExpiredDeadLetter(ctx context.Context, stage domain.Stage, maxAttempts, limit int) ([]string, error)
	LinkArtifact(ctx context.Context, publicID, artifactKey, bucket, objectKey string, schemaVersion *string) error
}
