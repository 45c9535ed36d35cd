package artifact

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// CompatPolicy controls how schema_version mismatches are handled on load.
type CompatPolicy string

const (
	// CompatStrict rejects any schema_version other than the active one.
	CompatStrict CompatPolicy = "strict"

	// CompatCompatible accepts any version within the same contract family
	// (the part before the colon).
	CompatCompatible CompatPolicy = "compatible"
)

// CompatPolicyFromEnv reads ARTIFACT_COMPAT_POLICY, defaulting to strict.
func CompatPolicyFromEnv() (CompatPolicy, error) {
	val := os.Getenv("ARTIFACT_COMPAT_POLICY")
	if val == "" {
		return CompatStrict, nil
	}
	p := CompatPolicy(val)
	if p != CompatStrict && p != CompatCompatible {
		return "", fmt.Errorf("invalid ARTIFACT_COMPAT_POLICY: %q", val)
	}
	return p, nil
}

// Buckets by payload kind.
const (
	BucketRaw        = "raw"
	BucketNormalized = "normalized"
	BucketEval       = "eval"
	BucketExports    = "exports"
)

// Repository stores and loads versioned stage payloads, enforcing the
// schema contract at the boundary so stages never consume a payload shape
// they were not built for.
type Repository struct {
	storage Storage
	policy  CompatPolicy
}

// NewRepository wraps a storage backend with schema validation.
func NewRepository(storage Storage, policy CompatPolicy) (*Repository, error) {
	if policy != CompatStrict && policy != CompatCompatible {
		return nil, fmt.Errorf("unsupported artifact compat policy: %q", policy)
	}
	return &Repository{storage: storage, policy: policy}, nil
}

// SaveRaw stores an ingress payload untouched. The key keeps the original
// file extension so normalization can dispatch parsers on it.
func (r *Repository) SaveRaw(ctx context.Context, submissionID, extension string, payload []byte) (string, error) {
	key := submissionID + extension
	if err := r.storage.PutBytes(ctx, BucketRaw, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// LoadRaw reads an ingress payload by key.
func (r *Repository) LoadRaw(ctx context.Context, key string) ([]byte, error) {
	return r.storage.GetBytes(ctx, BucketRaw, key)
}

// SaveNormalized validates and stores a normalized artifact, returning its
// storage key.
func (r *Repository) SaveNormalized(ctx context.Context, submissionID string, a *NormalizedArtifact) (string, error) {
	if err := r.validateSchema(SchemaNormalizedV1, a.SchemaVersion); err != nil {
		return "", err
	}
	payload, err := EncodeNormalized(a)
	if err != nil {
		return "", err
	}
	key := submissionID + ".json"
	if err := r.storage.PutBytes(ctx, BucketNormalized, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// LoadNormalized reads and validates a normalized artifact by key.
func (r *Repository) LoadNormalized(ctx context.Context, key string) (*NormalizedArtifact, error) {
	payload, err := r.storage.GetBytes(ctx, BucketNormalized, key)
	if err != nil {
		return nil, err
	}
	a, err := DecodeNormalized(payload)
	if err != nil {
		return nil, err
	}
	if err := r.validateSchema(SchemaNormalizedV1, a.SchemaVersion); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveEvaluation stores the raw model response for audit and the trace
// view. No schema contract applies: the payload is whatever the model
// returned after chain validation.
func (r *Repository) SaveEvaluation(ctx context.Context, submissionID string, payload []byte) (string, error) {
	key := submissionID + ".json"
	if err := r.storage.PutBytes(ctx, BucketEval, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// SaveExportRows validates and stores a CSV export, returning its storage
// key.
func (r *Repository) SaveExportRows(ctx context.Context, exportID string, rows []*ExportRow) (string, error) {
	for _, row := range rows {
		if err := r.validateSchema(SchemaExportsV1, row.SchemaVersion); err != nil {
			return "", err
		}
	}
	payload, err := EncodeExportRows(rows)
	if err != nil {
		return "", err
	}
	key := exportID + ".csv"
	if err := r.storage.PutBytes(ctx, BucketExports, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// LoadExport reads a stored CSV export by key.
func (r *Repository) LoadExport(ctx context.Context, key string) ([]byte, error) {
	return r.storage.GetBytes(ctx, BucketExports, key)
}

func (r *Repository) validateSchema(expected, actual string) error {
	if actual == expected {
		return nil
	}
	if r.policy == CompatCompatible {
		expectedFamily, _, _ := strings.Cut(expected, ":")
		actualFamily, _, _ := strings.Cut(actual, ":")
		if expectedFamily == actualFamily {
			return nil
		}
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrSchemaMismatch, expected, actual)
}
