package domain

// ErrorCode is a canonical failure code recorded on submissions and
// deliveries. Codes outside a stage's allowlist are normalized to
// internal_error before persistence so dashboards never see free-form codes.
type ErrorCode string

const (
	ErrCodeValidationError        ErrorCode = "validation_error"
	ErrCodeUnsupportedFormat      ErrorCode = "unsupported_format"
	ErrCodeTelegramUpdateInvalid  ErrorCode = "telegram_update_invalid"
	ErrCodeTelegramFileFetch      ErrorCode = "telegram_file_fetch_failed"
	ErrCodeArtifactMissing        ErrorCode = "artifact_missing"
	ErrCodeLLMProviderUnavailable ErrorCode = "llm_provider_unavailable"
	ErrCodeSchemaValidationFailed ErrorCode = "schema_validation_failed"
	ErrCodeDeliveryTransport      ErrorCode = "delivery_transport_failed"
	ErrCodeInternalError          ErrorCode = "internal_error"

	// Infrastructure codes set by the worker loop rather than handlers.
	ErrCodeLeaseExpired ErrorCode = "lease_expired"
	ErrCodeCancelled    ErrorCode = "cancelled"
)

// recoverableCodes marks failures that a retry can plausibly clear.
var recoverableCodes = map[ErrorCode]bool{
	ErrCodeTelegramFileFetch:      true,
	ErrCodeLLMProviderUnavailable: true,
	ErrCodeDeliveryTransport:      true,
	ErrCodeInternalError:          true,
	ErrCodeLeaseExpired:           true,
	ErrCodeCancelled:              true,
}

// Recoverable reports whether a retry may clear the failure. Unrecoverable
// codes still consume an attempt; they differ only in operator guidance.
func (c ErrorCode) Recoverable() bool {
	return recoverableCodes[c]
}

// stageErrorAllowlist is the set of codes each stage may legitimately emit.
var stageErrorAllowlist = map[Stage]map[ErrorCode]bool{
	StageTelegramIngest: {
		ErrCodeTelegramUpdateInvalid: true,
		ErrCodeTelegramFileFetch:     true,
		ErrCodeUnsupportedFormat:     true,
		ErrCodeInternalError:         true,
	},
	StageNormalize: {
		ErrCodeArtifactMissing:   true,
		ErrCodeUnsupportedFormat: true,
		ErrCodeValidationError:   true,
		ErrCodeInternalError:     true,
	},
	StageEvaluate: {
		ErrCodeArtifactMissing:        true,
		ErrCodeLLMProviderUnavailable: true,
		ErrCodeSchemaValidationFailed: true,
		ErrCodeInternalError:          true,
	},
	StageDeliver: {
		ErrCodeArtifactMissing:   true,
		ErrCodeDeliveryTransport: true,
		ErrCodeInternalError:     true,
	},
}

// loopCodes are set by the worker loop rather than stage handlers and are
// valid for every stage.
var loopCodes = map[ErrorCode]bool{
	ErrCodeLeaseExpired:               true,
	ErrCodeCancelled:                  true,
	ErrCodeValidationError:            true,
	ErrorCode(KindRetryableTransient): true,
	ErrorCode(KindRetryableResource):  true,
}

// ResolveStageError normalizes a handler-reported code against the stage's
// allowlist, falling back to internal_error for anything off-list.
func ResolveStageError(stage Stage, code ErrorCode) ErrorCode {
	if stageErrorAllowlist[stage][code] || loopCodes[code] {
		return code
	}
	return ErrCodeInternalError
}

// InvariantError reports a state that the conditional SQL guards should have
// made unreachable, such as a finalize against a lease the caller no longer
// holds.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return "invariant violation in " + e.Op + ": " + e.Detail
}

// NewInvariantError builds an InvariantError for the named operation.
func NewInvariantError(op, detail string) *InvariantError {
	return &InvariantError{Op: op, Detail: detail}
}
