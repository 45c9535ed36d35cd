package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleFor_Tuples(t *testing.T) {
	tests := []struct {
		stage      Stage
		pre        Status
		inProgress Status
		success    Status
		failed     Status
		column     string
	}{
		{StageTelegramIngest, StatusTelegramUpdateReceived, StatusTelegramIngestInProgress, StatusUploaded, StatusFailedTelegramIngest, "attempt_telegram_ingest"},
		{StageNormalize, StatusUploaded, StatusNormalizationInProgress, StatusNormalized, StatusFailedNormalization, "attempt_normalization"},
		{StageEvaluate, StatusNormalized, StatusEvaluationInProgress, StatusEvaluated, StatusFailedEvaluation, "attempt_evaluation"},
		{StageDeliver, StatusEvaluated, StatusDeliveryInProgress, StatusDelivered, StatusFailedDelivery, "attempt_delivery"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			lc, err := LifecycleFor(tt.stage)
			require.NoError(t, err)
			assert.Equal(t, tt.pre, lc.Pre)
			assert.Equal(t, tt.inProgress, lc.InProgress)
			assert.Equal(t, tt.success, lc.Success)
			assert.Equal(t, tt.failed, lc.Failed)
			assert.Equal(t, tt.column, lc.AttemptColumn)
			assert.Equal(t, DefaultMaxAttempts, lc.MaxAttempts)
		})
	}
}

func TestLifecycleFor_ChainsThroughStages(t *testing.T) {
	// Each stage's success state feeds the next stage's claim scan.
	for i := 1; i < len(AllStages); i++ {
		prev := MustLifecycleFor(AllStages[i-1])
		next := MustLifecycleFor(AllStages[i])
		assert.Equal(t, prev.Success, next.Pre,
			"%s success should be %s pre", prev.Stage, next.Stage)
	}
}

func TestLifecycleFor_UnknownStage(t *testing.T) {
	_, err := LifecycleFor(Stage("compile"))
	assert.Error(t, err)
	assert.False(t, ValidStage(Stage("compile")))
	assert.Panics(t, func() { MustLifecycleFor(Stage("compile")) })
}

func TestStageArtifactKey(t *testing.T) {
	assert.Equal(t, ArtifactKeyRaw, StageTelegramIngest.ArtifactKey())
	assert.Equal(t, ArtifactKeyNormalized, StageNormalize.ArtifactKey())
	assert.Equal(t, ArtifactKeyEvaluation, StageEvaluate.ArtifactKey())
	assert.Equal(t, ArtifactKeyDelivery, StageDeliver.ArtifactKey())
	assert.Equal(t, "", Stage("compile").ArtifactKey())

	for _, key := range AllArtifactKeys {
		assert.True(t, ValidArtifactKey(key))
	}
	assert.False(t, ValidArtifactKey("telegram_ingest"))
}
