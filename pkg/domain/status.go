package domain

// Status is the lifecycle state of a submission. Every state change goes
// through the store layer, which enforces AllowedTransitions in SQL WHERE
// clauses rather than trusting callers to check first.
type Status string

const (
	StatusTelegramUpdateReceived   Status = "telegram_update_received"
	StatusTelegramIngestInProgress Status = "telegram_ingest_in_progress"
	StatusUploaded                 Status = "uploaded"
	StatusNormalizationInProgress  Status = "normalization_in_progress"
	StatusNormalized               Status = "normalized"
	StatusEvaluationInProgress     Status = "evaluation_in_progress"
	StatusEvaluated                Status = "evaluated"
	StatusDeliveryInProgress       Status = "delivery_in_progress"
	StatusDelivered                Status = "delivered"
	StatusFailedTelegramIngest     Status = "failed_telegram_ingest"
	StatusFailedNormalization      Status = "failed_normalization"
	StatusFailedEvaluation         Status = "failed_evaluation"
	StatusFailedDelivery           Status = "failed_delivery"
	StatusDeadLetter               Status = "dead_letter"
)

// AllStatuses lists every status in pipeline order.
var AllStatuses = []Status{
	StatusTelegramUpdateReceived,
	StatusTelegramIngestInProgress,
	StatusUploaded,
	StatusNormalizationInProgress,
	StatusNormalized,
	StatusEvaluationInProgress,
	StatusEvaluated,
	StatusDeliveryInProgress,
	StatusDelivered,
	StatusFailedTelegramIngest,
	StatusFailedNormalization,
	StatusFailedEvaluation,
	StatusFailedDelivery,
	StatusDeadLetter,
}

// AllowedTransitions is the complete edge set of the status machine.
// Workers drive the pre -> in_progress -> success/failed edges; the
// failed_* -> pre edges exist for operator requeue only and are never
// taken automatically.
var AllowedTransitions = map[Status][]Status{
	StatusTelegramUpdateReceived:   {StatusTelegramIngestInProgress},
	StatusTelegramIngestInProgress: {StatusUploaded, StatusFailedTelegramIngest, StatusDeadLetter},
	StatusUploaded:                 {StatusNormalizationInProgress},
	StatusNormalizationInProgress:  {StatusNormalized, StatusFailedNormalization, StatusDeadLetter},
	StatusNormalized:               {StatusEvaluationInProgress},
	StatusEvaluationInProgress:     {StatusEvaluated, StatusFailedEvaluation, StatusDeadLetter},
	StatusEvaluated:                {StatusDeliveryInProgress},
	StatusDeliveryInProgress:       {StatusDelivered, StatusFailedDelivery, StatusDeadLetter},
	StatusDelivered:                {},
	StatusFailedTelegramIngest:     {StatusTelegramUpdateReceived},
	StatusFailedNormalization:      {StatusUploaded},
	StatusFailedEvaluation:         {StatusNormalized},
	StatusFailedDelivery:           {StatusEvaluated},
	StatusDeadLetter:               {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edges leave the status.
func (s Status) IsTerminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// ValidStatus reports whether s is one of the defined statuses.
func ValidStatus(s Status) bool {
	_, ok := AllowedTransitions[s]
	return ok
}
