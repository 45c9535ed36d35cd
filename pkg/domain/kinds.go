package domain

// ErrorKind classifies a stage failure for retry policy. Handlers classify;
// the worker loop picks retry or terminal finalization from the kind and the
// attempt count.
type ErrorKind string

const (
	// KindRetryableTransient covers network timeouts, upstream 5xx, and LLM
	// rate limits.
	KindRetryableTransient ErrorKind = "retryable_transient"

	// KindRetryableResource covers lease loss and reclaim races. The worker
	// does not increment the attempt counter itself; the reclaim already did.
	KindRetryableResource ErrorKind = "retryable_resource"

	// KindPermanentBadInput covers schema mismatches under strict
	// compatibility and malformed payloads. Goes terminal on the first
	// attempt.
	KindPermanentBadInput ErrorKind = "permanent_bad_input"

	// KindPermanentBusiness marks a negative result that is itself the
	// successful outcome of the stage. Handlers report it on the success
	// path; it never reaches failure finalization.
	KindPermanentBusiness ErrorKind = "permanent_business"

	// KindCancelled marks handlers cancelled by lease loss or shutdown.
	KindCancelled ErrorKind = "cancelled"

	// KindFatalInfrastructure means the repository itself was unreachable.
	// The tick errors out and no submission state changes.
	KindFatalInfrastructure ErrorKind = "fatal_infrastructure"
)

// Retryable reports whether the loop should finalize with a retry rather
// than going straight to terminal.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRetryableTransient, KindRetryableResource, KindCancelled:
		return true
	default:
		return false
	}
}
