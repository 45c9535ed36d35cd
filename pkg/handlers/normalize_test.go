package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/domain"
)

func seedRaw(t *testing.T, env *testEnv, ext string, payload []byte) {
	t.Helper()
	key, err := env.repo.SaveRaw(context.Background(), testSubmissionID, ext, payload)
	require.NoError(t, err)
	env.records.linkArtifact(domain.ArtifactKeyRaw, artifact.BucketRaw, key, "")
}

func TestNormalizeHappyPath(t *testing.T) {
	env := newTestEnv(t)
	seedRaw(t, env, ".md", []byte("# Solution\r\n\r\n\r\n\r\nSome    answer\ttext\r\n"))

	handler := NewNormalize(env.deps)
	assert.Equal(t, domain.StageNormalize, handler.Stage())

	result, err := handler.Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, artifact.BucketNormalized, result.Artifact.Bucket)
	assert.Equal(t, artifact.SchemaNormalizedV1, result.Artifact.SchemaVersion)

	normalized, err := env.repo.LoadNormalized(context.Background(), result.Artifact.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, testSubmissionID, normalized.SubmissionPublicID)
	assert.Equal(t, testAssignmentID, normalized.AssignmentPublicID)
	assert.Equal(t, SourceTypeAPIUpload, normalized.SourceType)
	assert.Equal(t, "# Solution\n\nSome answer text", normalized.ContentMarkdown)
	assert.Equal(t, ".md", normalized.Metadata["source_extension"])
}

func TestNormalizeCarriesTelegramSourceType(t *testing.T) {
	env := newTestEnv(t)
	env.records.source = telegramSource(`{"file_id":"doc-1","file_name":"solution.txt"}`)
	seedRaw(t, env, ".txt", []byte("solution body"))

	result, err := NewNormalize(env.deps).Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	require.True(t, result.Success)

	normalized, err := env.repo.LoadNormalized(context.Background(), result.Artifact.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeTelegramWebhook, normalized.SourceType)
}

func TestNormalizeMissingRawArtifact(t *testing.T) {
	env := newTestEnv(t)

	result, err := NewNormalize(env.deps).Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.KindPermanentBadInput, result.Kind)
	assert.Equal(t, domain.ErrCodeArtifactMissing, result.Code)
}

func TestNormalizeUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t)
	env.records.linkArtifact(domain.ArtifactKeyRaw, artifact.BucketRaw, testSubmissionID+".docx", "")

	result, err := NewNormalize(env.deps).Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	assert.Equal(t, domain.ErrCodeUnsupportedFormat, result.Code)
}

func TestNormalizeMissingBlobBehindPointer(t *testing.T) {
	env := newTestEnv(t)
	env.records.linkArtifact(domain.ArtifactKeyRaw, artifact.BucketRaw, testSubmissionID+".txt", "")

	result, err := NewNormalize(env.deps).Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	assert.Equal(t, domain.KindPermanentBadInput, result.Kind)
	assert.Equal(t, domain.ErrCodeArtifactMissing, result.Code)
}

func TestNormalizeEmptyPayloadIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	seedRaw(t, env, ".txt", []byte("   \n\n\t  \n"))

	result, err := NewNormalize(env.deps).Process(context.Background(), testHandlerClaim(domain.StageNormalize))
	require.NoError(t, err)
	assert.Equal(t, domain.KindPermanentBadInput, result.Kind)
	assert.Equal(t, domain.ErrCodeValidationError, result.Code)
}

func TestToUnifiedMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf to lf", "a\r\nb\rc", "a\nb\nc"},
		{"collapse horizontal whitespace", "a  \t b", "a b"},
		{"collapse blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"nul bytes become spaces", "a\x00b", "a b"},
		{"trims edges", "  \n body \n ", "body"},
		{"empty stays empty", "   \n\t ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToUnifiedMarkdown(tt.in))
		})
	}
}

func TestSupportedFormat(t *testing.T) {
	assert.True(t, SupportedFormat(".txt"))
	assert.True(t, SupportedFormat(".MD"))
	assert.False(t, SupportedFormat(".pdf"))
	assert.False(t, SupportedFormat(""))
}
