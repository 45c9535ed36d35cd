package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/domain"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/telegram"
	"github.com/gradewire/gradewire/pkg/worker"
)

// SourceTypeTelegramWebhook is the source_type telegram ingress writes.
const SourceTypeTelegramWebhook = "telegram_webhook"

// SourceTypeAPIUpload is the source_type the upload endpoints write.
const SourceTypeAPIUpload = "api_upload"

// TelegramIngest fetches the file behind a webhook update and persists it as
// the raw artifact.
type TelegramIngest struct {
	deps *Deps
}

// NewTelegramIngest creates the ingest handler.
func NewTelegramIngest(deps *Deps) *TelegramIngest {
	return &TelegramIngest{deps: deps}
}

// Stage implements worker.Handler.
func (h *TelegramIngest) Stage() domain.Stage { return domain.StageTelegramIngest }

// webhookMetadata is the source metadata telegram ingress persists.
type webhookMetadata struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Process implements worker.Handler.
func (h *TelegramIngest) Process(ctx context.Context, claim *store.Claim) (*worker.ProcessResult, error) {
	src, err := h.deps.Records.GetSourceForSubmission(ctx, claim.PublicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(domain.KindPermanentBadInput, domain.ErrCodeTelegramUpdateInvalid,
				"telegram source is missing for submission"), nil
		}
		return nil, fmt.Errorf("load submission source: %w", err)
	}
	if src.SourceType != SourceTypeTelegramWebhook {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeTelegramUpdateInvalid,
			fmt.Sprintf("unexpected source type: %s", src.SourceType)), nil
	}

	meta := webhookMetadata{}
	if err := json.Unmarshal(src.MetadataJSON, &meta); err != nil || meta.FileID == "" {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeTelegramUpdateInvalid,
			"telegram webhook metadata.file_id is required"), nil
	}
	fileName := meta.FileName
	if fileName == "" {
		fileName = "submission.txt"
	}

	ext := strings.ToLower(path.Ext(fileName))
	if !SupportedFormat(ext) {
		return failure(domain.KindPermanentBadInput, domain.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported extension: %s", extOrNone(ext))), nil
	}

	payload, err := h.deps.Telegram.GetFileBytes(ctx, meta.FileID)
	if err != nil {
		if errors.Is(err, telegram.ErrFileNotFound) {
			return failure(domain.KindRetryableTransient, domain.ErrCodeTelegramFileFetch, err.Error()), nil
		}
		return nil, fmt.Errorf("fetch telegram file: %w", err)
	}

	key, err := h.deps.Artifacts.SaveRaw(ctx, claim.PublicID, ext, payload)
	if err != nil {
		return nil, fmt.Errorf("save raw artifact: %w", err)
	}

	h.deps.logger().Info("Telegram file ingested",
		"submission_id", claim.PublicID, "file_name", fileName, "bytes", len(payload))

	return &worker.ProcessResult{
		Success: true,
		Detail:  "telegram ingest completed",
		Artifact: &worker.ArtifactRef{
			Bucket:    artifact.BucketRaw,
			ObjectKey: key,
		},
	}, nil
}

func failure(kind domain.ErrorKind, code domain.ErrorCode, detail string) *worker.ProcessResult {
	return &worker.ProcessResult{Kind: kind, Code: code, Detail: detail}
}

func extOrNone(ext string) string {
	if ext == "" {
		return "<none>"
	}
	return ext
}
