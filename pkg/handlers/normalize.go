package handlers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/worker"
)

// supportedFormats are the raw payload extensions normalization can parse.
var supportedFormats = map[string]bool{
	".txt": true,
	".md":  true,
}

// SupportedFormat reports whether normalization can parse the extension.
func SupportedFormat(ext string) bool {
	return supportedFormats[strings.ToLower(ext)]
}

// Normalize parses the raw artifact into unified markdown and writes the
// normalized artifact the evaluate stage consumes.
type Normalize struct {
	deps *Deps
}

// NewNormalize creates the normalize handler.
func NewNormalize(deps *Deps) *Normalize {
	return &Normalize{deps: deps}
}

// Stage implements worker.Handler.
func (h *Normalize) Stage() domain.Stage { return domain.StageNormalize }

// Process implements worker.Handler.
func (h *Normalize) Process(ctx context.Context, claim *store.Claim) (*worker.ProcessResult, error) {
	rawArt, err := h.deps.Records.LatestArtifact(ctx, claim.PublicID, domain.ArtifactKeyRaw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeArtifactMissing,
				"raw artifact is missing"), nil
		}
		return nil, fmt.Errorf("look up raw artifact: %w", err)
	}

	ext := strings.ToLower(path.Ext(rawArt.ObjectKey))
	if !SupportedFormat(ext) {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported extension: %s", extOrNone(ext))), nil
	}

	payload, err := h.deps.Artifacts.LoadRaw(ctx, rawArt.ObjectKey)
	if err != nil {
		if errors.Is(err, artifact.ErrBlobNotFound) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeArtifactMissing, err.Error()), nil
		}
		return nil, fmt.Errorf("load raw artifact: %w", err)
	}

	sub, err := h.deps.Records.GetSubmission(ctx, claim.PublicID)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	asg, err := h.deps.Records.GetAssignmentByID(ctx, sub.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	sourceType := SourceTypeAPIUpload
	src, err := h.deps.Records.GetSourceForSubmission(ctx, claim.PublicID)
	switch {
	case err == nil:
		sourceType = src.SourceType
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load submission source: %w", err)
	}

	content := ToUnifiedMarkdown(decodeText(payload))
	if content == "" {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError,
			"submission payload is empty after normalization"), nil
	}

	normalized := &artifact.NormalizedArtifact{
		SubmissionPublicID: claim.PublicID,
		AssignmentPublicID: asg.PublicID,
		SourceType:         sourceType,
		ContentMarkdown:    content,
		Metadata: map[string]string{
			"parser":           "text",
			"source_extension": ext,
		},
		SchemaVersion: artifact.SchemaNormalizedV1,
	}

	key, err := h.deps.Artifacts.SaveNormalized(ctx, claim.PublicID, normalized)
	if err != nil {
		if errors.Is(err, artifact.ErrSchemaMismatch) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeValidationError, err.Error()), nil
		}
		return nil, fmt.Errorf("save normalized artifact: %w", err)
	}

	return &worker.ProcessResult{
		Success: true,
		Detail:  "normalize completed",
		Artifact: &worker.ArtifactRef{
			Bucket:        artifact.BucketNormalized,
			ObjectKey:     key,
			SchemaVersion: artifact.SchemaNormalizedV1,
		},
	}, nil
}

var (
	crlfRe      = regexp.MustCompile(`\r\n?`)
	runsRe      = regexp.MustCompile(`[ \t]+`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// ToUnifiedMarkdown canonicalizes extracted text: NUL bytes become spaces,
// line endings become \n, horizontal whitespace collapses, and runs of blank
// lines shrink to one.
func ToUnifiedMarkdown(text string) string {
	out := strings.ReplaceAll(text, "\x00", " ")
	out = crlfRe.ReplaceAllString(out, "\n")
	out = runsRe.ReplaceAllString(out, " ")
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// decodeText interprets the payload as UTF-8, replacing invalid sequences
// rather than failing: candidate uploads are not trusted to be well-formed.
func decodeText(payload []byte) string {
	return strings.ToValidUTF8(string(payload), "�")
}
