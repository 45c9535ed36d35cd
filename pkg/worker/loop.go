package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/store"
)

// Loop runs one stage tick at a time for a single worker identity.
type Loop struct {
	workerID string
	stage    domain.Stage
	store    ClaimStore
	handler  Handler
	cfg      Config
	logger   *slog.Logger
}

// NewLoop creates a tick loop for the handler's stage.
func NewLoop(workerID string, st ClaimStore, handler Handler, cfg Config, logger *slog.Logger) (*Loop, error) {
	if workerID == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		workerID: workerID,
		stage:    handler.Stage(),
		store:    st,
		handler:  handler,
		cfg:      cfg,
		logger:   logger.With("worker_id", workerID, "stage", handler.Stage()),
	}, nil
}

// RunOnce performs one tick: reclaim expired leases for the stage, claim the
// next submission, run the handler under a heartbeat, and finalize. Returns
// whether the tick did work; an error means infrastructure failed and no
// submission state changed on this worker's behalf.
func (l *Loop) RunOnce(ctx context.Context) (bool, error) {
	if _, err := l.store.ReclaimExpiredRetry(ctx, l.stage, l.cfg.MaxAttempts, l.cfg.ReclaimBatchLimit); err != nil {
		return false, fmt.Errorf("reclaim expired retry: %w", err)
	}
	if _, err := l.store.ReclaimExpiredDeadLetter(ctx, l.stage, l.cfg.MaxAttempts, l.cfg.ReclaimBatchLimit); err != nil {
		return false, fmt.Errorf("reclaim expired dead letter: %w", err)
	}

	claim, err := l.store.ClaimNext(ctx, l.stage, l.workerID, l.cfg.LeaseSeconds)
	if err != nil {
		return false, fmt.Errorf("claim next: %w", err)
	}
	if claim == nil {
		return false, nil
	}

	log := l.logger.With("submission_id", claim.PublicID, "attempt", claim.Attempt)
	log.Info("Claim obtained", "lease_expires_at", claim.LeaseExpiresAt)

	handlerCtx, cancelHandler := context.WithCancel(ctx)
	defer cancelHandler()

	var leaseLost atomic.Bool
	hbDone := make(chan struct{})
	go l.runHeartbeat(handlerCtx, claim.PublicID, &leaseLost, cancelHandler, hbDone)

	result, handlerErr := l.handler.Process(handlerCtx, claim)
	if handlerErr != nil && handlerCtx.Err() == nil {
		// The handler hit infrastructure (store, blob storage) rather than
		// classifying a stage failure. The submission is left untouched;
		// the lease expires and reclaim decides its fate.
		cancelHandler()
		<-hbDone
		log.Error("Handler errored, abandoning claim", "error", handlerErr)
		return true, fmt.Errorf("handler: %w", handlerErr)
	}
	result = l.resolveResult(handlerCtx, result, handlerErr)

	l.finalize(ctx, log, claim, result, leaseLost.Load())

	cancelHandler()
	<-hbDone
	return true, nil
}

// runHeartbeat extends the lease until ctx is done. The first false return
// from the store means the lease was lost; the handler is cancelled
// cooperatively and the tick finishes as a failure.
func (l *Loop) runHeartbeat(ctx context.Context, publicID string, leaseLost *atomic.Bool, cancelHandler context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.store.HeartbeatClaim(ctx, l.stage, publicID, l.workerID, l.cfg.LeaseSeconds)
			if err != nil {
				// Transient store trouble; the lease has slack for
				// 3 missed beats before expiry.
				l.logger.Warn("Heartbeat failed", "submission_id", publicID, "error", err)
				continue
			}
			if !ok {
				l.logger.Warn("Lease lost, cancelling handler", "submission_id", publicID)
				leaseLost.Store(true)
				cancelHandler()
				return
			}
		}
	}
}

// resolveResult normalizes a handler outcome into a ProcessResult.
func (l *Loop) resolveResult(handlerCtx context.Context, result *ProcessResult, handlerErr error) *ProcessResult {
	if handlerErr == nil && result != nil {
		return result
	}
	if handlerCtx.Err() != nil {
		detail := "handler cancelled"
		if handlerErr != nil {
			detail = handlerErr.Error()
		}
		return &ProcessResult{
			Kind:   domain.KindCancelled,
			Code:   domain.ErrCodeCancelled,
			Detail: detail,
		}
	}
	// Process returned (nil, nil): a handler contract bug, not an
	// infrastructure failure. Finalized retryable so the row is not stuck.
	return &ProcessResult{
		Kind:   domain.KindRetryableTransient,
		Code:   domain.ErrCodeInternalError,
		Detail: "handler returned no result",
	}
}

// finalize drives the submission out of its in-progress state. All store
// rejections here mean the lease was lost; the row already matches whatever
// the reclaiming worker decided, so the loop logs and abandons.
func (l *Loop) finalize(ctx context.Context, log *slog.Logger, claim *store.Claim, result *ProcessResult, leaseLost bool) {
	if result.Success {
		if result.Artifact != nil {
			if err := l.linkArtifact(ctx, claim.PublicID, result.Artifact); err != nil {
				log.Error("Failed to link artifact", "error", err)
				l.finalizeFailure(ctx, log, claim, &ProcessResult{
					Kind:   domain.KindRetryableTransient,
					Code:   domain.ErrCodeInternalError,
					Detail: fmt.Sprintf("link artifact: %v", err),
				})
				return
			}
		}
		ok, err := l.store.FinalizeSuccess(ctx, l.stage, claim.PublicID, l.workerID)
		if err != nil {
			log.Error("Finalize success errored", "error", err)
			return
		}
		if !ok {
			log.Warn("finalize_success_rejected", "lease_lost", leaseLost)
			return
		}
		log.Info("Submission finalized", "outcome", "success")
		return
	}

	l.finalizeFailure(ctx, log, claim, result)
}

func (l *Loop) finalizeFailure(ctx context.Context, log *slog.Logger, claim *store.Claim, result *ProcessResult) {
	code := result.Code
	if code == "" {
		code = domain.ErrorCode(result.Kind)
	}

	// Permanent bad input skips the retry budget entirely.
	if result.Kind != "" && !result.Kind.Retryable() {
		l.finalizeTerminal(ctx, log, claim, code, result.Detail)
		return
	}

	ok, err := l.store.FinalizeFailureRetry(ctx, l.stage, claim.PublicID, l.workerID, code, result.Detail, l.cfg.MaxAttempts)
	if err != nil {
		log.Error("Finalize failure retry errored", "error", err)
		return
	}
	if ok {
		log.Info("Submission finalized", "outcome", "failed_retry", "error_code", code, "detail", result.Detail)
		return
	}

	// Retry was rejected: either the attempt budget is exhausted or the
	// lease is gone. The terminal statement distinguishes the two.
	l.finalizeTerminal(ctx, log, claim, code, result.Detail)
}

func (l *Loop) finalizeTerminal(ctx context.Context, log *slog.Logger, claim *store.Claim, code domain.ErrorCode, detail string) {
	ok, err := l.store.FinalizeFailureTerminal(ctx, l.stage, claim.PublicID, l.workerID, code, detail)
	if err != nil {
		log.Error("Finalize failure terminal errored", "error", err)
		return
	}
	if !ok {
		log.Warn("finalize_failure_rejected", "error_code", code)
		return
	}
	log.Info("Submission finalized", "outcome", "dead_letter", "error_code", code, "detail", detail)
}

func (l *Loop) linkArtifact(ctx context.Context, publicID string, ref *ArtifactRef) error {
	var schemaVersion *string
	if ref.SchemaVersion != "" {
		schemaVersion = &ref.SchemaVersion
	}
	return l.store.LinkArtifact(ctx, publicID, l.stage.ArtifactKey(), ref.Bucket, ref.ObjectKey, schemaVersion)
}
