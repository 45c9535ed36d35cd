package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderSpec(t *testing.T, template string) *Spec {
	t.Helper()
	spec, err := Parse([]byte(replace(minimalSpec, `user_template: "u"`, `user_template: "`+template+`"`)))
	require.NoError(t, err)
	return spec
}

func TestRenderUserPrompt_InputsAndSpec(t *testing.T) {
	spec := renderSpec(t, "lang={{runtime.response_language}} sub={{submission_markdown}}")

	out, err := spec.RenderUserPrompt(map[string]any{"submission_markdown": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "lang=ru sub=hello", out)
}

func TestRenderUserPrompt_InputsShadowSpec(t *testing.T) {
	spec := renderSpec(t, "model={{model}}")

	out, err := spec.RenderUserPrompt(map[string]any{"model": "override"})
	require.NoError(t, err)
	assert.Equal(t, "model=override", out)
}

func TestRenderUserPrompt_RubricAsJSON(t *testing.T) {
	spec := renderSpec(t, "rubric={{rubric.criteria}}")

	out, err := spec.RenderUserPrompt(nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"correctness"`)
	assert.Contains(t, out, `"weight":1`)
}

func TestRenderUserPrompt_DotPathIntoInputs(t *testing.T) {
	spec := renderSpec(t, "content={{normalized.content_markdown}}")

	out, err := spec.RenderUserPrompt(map[string]any{
		"normalized": map[string]any{"content_markdown": "body"},
	})
	require.NoError(t, err)
	assert.Equal(t, "content=body", out)
}

func TestRenderUserPrompt_MissingPlaceholder(t *testing.T) {
	spec := renderSpec(t, "x={{nope.nothing}}")

	_, err := spec.RenderUserPrompt(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.nothing")
}

func TestRenderUserPrompt_WhitespaceInBraces(t *testing.T) {
	spec := renderSpec(t, "v={{ spec_version }}")

	out, err := spec.RenderUserPrompt(nil)
	require.NoError(t, err)
	assert.Equal(t, "v=chain-spec:v1", out)
}
