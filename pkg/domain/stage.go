package domain

import "fmt"

// Stage identifies one of the four pipeline stages a worker role processes.
type Stage string

const (
	StageTelegramIngest Stage = "telegram_ingest"
	StageNormalize      Stage = "normalize"
	StageEvaluate       Stage = "evaluate"
	StageDeliver        Stage = "deliver"
)

// AllStages lists every stage in pipeline order.
var AllStages = []Stage{StageTelegramIngest, StageNormalize, StageEvaluate, StageDeliver}

// DefaultMaxAttempts bounds retries per stage before a submission is parked
// in dead_letter.
const DefaultMaxAttempts = 3

// Lifecycle is the per-stage tuple the store layer builds its SQL from:
// which status a claim scans, which statuses finalization moves to, and
// which attempt column it increments. AttemptColumn is always one of the
// four literals below, never derived from input, so statements can be
// prepared with the column name baked in.
type Lifecycle struct {
	Stage         Stage
	Pre           Status
	InProgress    Status
	Success       Status
	Failed        Status
	AttemptColumn string
	MaxAttempts   int
}

// LifecycleFor returns the lifecycle tuple for a stage.
func LifecycleFor(stage Stage) (Lifecycle, error) {
	switch stage {
	case StageTelegramIngest:
		return Lifecycle{
			Stage:         StageTelegramIngest,
			Pre:           StatusTelegramUpdateReceived,
			InProgress:    StatusTelegramIngestInProgress,
			Success:       StatusUploaded,
			Failed:        StatusFailedTelegramIngest,
			AttemptColumn: "attempt_telegram_ingest",
			MaxAttempts:   DefaultMaxAttempts,
		}, nil
	case StageNormalize:
		return Lifecycle{
			Stage:         StageNormalize,
			Pre:           StatusUploaded,
			InProgress:    StatusNormalizationInProgress,
			Success:       StatusNormalized,
			Failed:        StatusFailedNormalization,
			AttemptColumn: "attempt_normalization",
			MaxAttempts:   DefaultMaxAttempts,
		}, nil
	case StageEvaluate:
		return Lifecycle{
			Stage:         StageEvaluate,
			Pre:           StatusNormalized,
			InProgress:    StatusEvaluationInProgress,
			Success:       StatusEvaluated,
			Failed:        StatusFailedEvaluation,
			AttemptColumn: "attempt_evaluation",
			MaxAttempts:   DefaultMaxAttempts,
		}, nil
	case StageDeliver:
		return Lifecycle{
			Stage:         StageDeliver,
			Pre:           StatusEvaluated,
			InProgress:    StatusDeliveryInProgress,
			Success:       StatusDelivered,
			Failed:        StatusFailedDelivery,
			AttemptColumn: "attempt_delivery",
			MaxAttempts:   DefaultMaxAttempts,
		}, nil
	default:
		return Lifecycle{}, fmt.Errorf("unknown stage: %q", stage)
	}
}

// MustLifecycleFor is LifecycleFor for statically known stages; it panics on
// an unknown stage.
func MustLifecycleFor(stage Stage) Lifecycle {
	lc, err := LifecycleFor(stage)
	if err != nil {
		panic(err)
	}
	return lc
}

// ValidStage reports whether s is one of the defined stages.
func ValidStage(s Stage) bool {
	_, err := LifecycleFor(s)
	return err == nil
}

// Artifact trace labels. Each stage's output is linked under its label; the
// submission trace view groups artifacts by it.
const (
	ArtifactKeyRaw        = "raw"
	ArtifactKeyNormalized = "normalized"
	ArtifactKeyEvaluation = "evaluation"
	ArtifactKeyDelivery   = "delivery"
)

// AllArtifactKeys lists the valid artifact trace labels.
var AllArtifactKeys = []string{
	ArtifactKeyRaw, ArtifactKeyNormalized, ArtifactKeyEvaluation, ArtifactKeyDelivery,
}

// ArtifactKey returns the trace label a stage links its output under.
func (s Stage) ArtifactKey() string {
	switch s {
	case StageTelegramIngest:
		return ArtifactKeyRaw
	case StageNormalize:
		return ArtifactKeyNormalized
	case StageEvaluate:
		return ArtifactKeyEvaluation
	case StageDeliver:
		return ArtifactKeyDelivery
	default:
		return ""
	}
}

// ValidArtifactKey reports whether key is a known trace label.
func ValidArtifactKey(key string) bool {
	for _, k := range AllArtifactKeys {
		if k == key {
			return true
		}
	}
	return false
}
