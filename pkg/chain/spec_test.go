package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSpec = `
spec_version: "chain-spec:v1"
chain_version: "chain:v1"
model: "model:v1"
runtime:
  temperature: 0.1
  seed: 42
  response_language: "ru"
rubric:
  criteria:
    - id: correctness
      description: "d"
      weight: 1.0
  ai_assistance_policy:
    enabled: true
    affects_score: false
    require_fields: [likelihood, confidence, disclaimer]
prompts:
  system: "s"
  user_template: "u"
llm_response:
  type: json
  required: []
  properties: {}
`

func TestParse_Minimal(t *testing.T) {
	spec, err := Parse([]byte(minimalSpec))
	require.NoError(t, err)
	assert.Equal(t, "chain-spec:v1", spec.SpecVersion)
	assert.Equal(t, "chain:v1", spec.ChainVersion)
	assert.Equal(t, "ru", spec.Runtime.ResponseLanguage)
	require.NotNil(t, spec.Runtime.Seed)
	assert.Equal(t, int64(42), *spec.Runtime.Seed)
	require.Len(t, spec.Rubric.Criteria, 1)
}

func TestLoad_DefaultChainSpec(t *testing.T) {
	spec, err := Load("../../configs/evaluation_chain.yaml")
	require.NoError(t, err)
	assert.Equal(t, "chain-spec:v1", spec.SpecVersion)
	assert.Equal(t, "chain:v1", spec.ChainVersion)
	assert.NotEmpty(t, spec.Model)
	assert.GreaterOrEqual(t, len(spec.Rubric.Criteria), 1)
	assert.NotZero(t, spec.WeightByID("correctness"))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "non-ISO language",
			mutate:  func(s string) string { return replace(s, `response_language: "ru"`, `response_language: "russian"`) },
			wantErr: "response_language",
		},
		{
			name:    "missing spec_version",
			mutate:  func(s string) string { return replace(s, `spec_version: "chain-spec:v1"`, `spec_version: ""`) },
			wantErr: "spec_version",
		},
		{
			name:    "missing model",
			mutate:  func(s string) string { return replace(s, `model: "model:v1"`, `model: ""`) },
			wantErr: "model",
		},
		{
			name:    "zero total weight",
			mutate:  func(s string) string { return replace(s, `weight: 1.0`, `weight: 0.0`) },
			wantErr: "total weight",
		},
		{
			name:    "wrong response type",
			mutate:  func(s string) string { return replace(s, `type: json`, `type: xml`) },
			wantErr: "llm_response.type",
		},
		{
			name:    "missing system prompt",
			mutate:  func(s string) string { return replace(s, `system: "s"`, `system: ""`) },
			wantErr: "prompts.system",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(minimalSpec)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func replace(s, old, new string) string {
	return strings.ReplaceAll(s, old, new)
}
