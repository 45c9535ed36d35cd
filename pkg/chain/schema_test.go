package chain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSpec(t *testing.T) *Spec {
	t.Helper()
	spec, err := Load("../../configs/evaluation_chain.yaml")
	require.NoError(t, err)
	return spec
}

func validPayload(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"criteria": [{"id": "correctness", "score": 8, "reason": "ok"}],
		"organizer_feedback": {"strengths": ["s"], "issues": ["i"], "recommendations": ["r"]},
		"candidate_feedback": {"summary": "ok", "what_went_well": ["w"], "what_to_improve": ["m"]},
		"ai_assistance": {"likelihood": 0.2, "confidence": 0.6, "disclaimer": "d"}
	}`
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestValidateResponse_Valid(t *testing.T) {
	spec := fullSpec(t)
	assert.NoError(t, spec.ValidateResponse(validPayload(t)))
}

func TestValidateResponse_MissingRequired(t *testing.T) {
	spec := fullSpec(t)
	payload := validPayload(t)
	delete(payload, "organizer_feedback")

	err := spec.ValidateResponse(payload)
	require.ErrorIs(t, err, ErrResponseSchema)
	assert.Contains(t, err.Error(), "organizer_feedback")
}

func TestValidateResponse_FractionalInteger(t *testing.T) {
	spec := fullSpec(t)
	payload := validPayload(t)
	payload["criteria"].([]any)[0].(map[string]any)["score"] = 7.5

	err := spec.ValidateResponse(payload)
	require.ErrorIs(t, err, ErrResponseSchema)
	assert.Contains(t, err.Error(), "expected integer")
}

func TestValidateResponse_ScoreOutOfBounds(t *testing.T) {
	spec := fullSpec(t)
	payload := validPayload(t)
	payload["criteria"].([]any)[0].(map[string]any)["score"] = float64(11)

	err := spec.ValidateResponse(payload)
	require.ErrorIs(t, err, ErrResponseSchema)
	assert.Contains(t, err.Error(), "above maximum")
}

func TestValidateResponse_WrongTypes(t *testing.T) {
	spec := fullSpec(t)

	payload := validPayload(t)
	payload["criteria"] = "not an array"
	assert.ErrorIs(t, spec.ValidateResponse(payload), ErrResponseSchema)

	payload = validPayload(t)
	payload["ai_assistance"].(map[string]any)["likelihood"] = "high"
	assert.ErrorIs(t, spec.ValidateResponse(payload), ErrResponseSchema)

	payload = validPayload(t)
	payload["candidate_feedback"].(map[string]any)["summary"] = float64(3)
	assert.ErrorIs(t, spec.ValidateResponse(payload), ErrResponseSchema)
}

func TestValidateResponse_TopLevelNotObject(t *testing.T) {
	spec := fullSpec(t)
	err := validateNode([]any{}, spec.LLMResponse, "$")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected object")
}
