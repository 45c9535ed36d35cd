package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gradewire/gradewire/pkg/domain"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateCandidate inserts a candidate with a fresh public ID.
func (s *Store) CreateCandidate(ctx context.Context, firstName, lastName string) (*domain.Candidate, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		return nil, NewValidationError("first_name", "required")
	}
	if lastName == "" {
		return nil, NewValidationError("last_name", "required")
	}

	c := &domain.Candidate{
		PublicID:  domain.NewCandidateID(),
		FirstName: firstName,
		LastName:  lastName,
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO candidates (public_id, first_name, last_name)
VALUES ($1, $2, $3)
RETURNING id, created_at`, c.PublicID, c.FirstName, c.LastName).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}
	return c, nil
}

// GetCandidate looks up a candidate by public ID.
func (s *Store) GetCandidate(ctx context.Context, publicID string) (*domain.Candidate, error) {
	if !domain.ValidPublicIDWithPrefix(publicID, domain.CandidateIDPrefix) {
		return nil, NewValidationError("candidate_id", "malformed public id")
	}
	c := &domain.Candidate{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, public_id, first_name, last_name, created_at
FROM candidates WHERE public_id = $1`, publicID).
		Scan(&c.ID, &c.PublicID, &c.FirstName, &c.LastName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// GetCandidateByID looks up a candidate by internal ID. Handlers use this to
// join a claimed submission back to its identity context.
func (s *Store) GetCandidateByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	c := &domain.Candidate{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, public_id, first_name, last_name, created_at
FROM candidates WHERE id = $1`, id).
		Scan(&c.ID, &c.PublicID, &c.FirstName, &c.LastName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// GetOrCreateCandidateBySource resolves an external identity (such as a
// telegram user ID) to a candidate, creating both candidate and source link
// when unseen. Safe under concurrent calls for the same source: the unique
// (source_type, source_external_id) constraint decides the winner and the
// loser re-reads.
func (s *Store) GetOrCreateCandidateBySource(ctx context.Context, sourceType, sourceExternalID, firstName, lastName string) (*domain.Candidate, bool, error) {
	if sourceType == "" {
		return nil, false, NewValidationError("source_type", "required")
	}
	if sourceExternalID == "" {
		return nil, false, NewValidationError("source_external_id", "required")
	}

	lookup := func() (*domain.Candidate, error) {
		c := &domain.Candidate{}
		err := s.db.QueryRowContext(ctx, `
SELECT c.id, c.public_id, c.first_name, c.last_name, c.created_at
FROM candidates c
JOIN candidate_sources cs ON cs.candidate_id = c.id
WHERE cs.source_type = $1 AND cs.source_external_id = $2`, sourceType, sourceExternalID).
			Scan(&c.ID, &c.PublicID, &c.FirstName, &c.LastName, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := lookup()
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up candidate source: %w", err)
	}

	created := &domain.Candidate{
		PublicID:  domain.NewCandidateID(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}
	if created.FirstName == "" {
		created.FirstName = "Unknown"
	}
	if created.LastName == "" {
		created.LastName = sourceExternalID
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
INSERT INTO candidates (public_id, first_name, last_name)
VALUES ($1, $2, $3)
RETURNING id, created_at`, created.PublicID, created.FirstName, created.LastName).
			Scan(&created.ID, &created.CreatedAt); err != nil {
			return fmt.Errorf("failed to create candidate: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO candidate_sources (candidate_id, source_type, source_external_id)
VALUES ($1, $2, $3)`, created.ID, sourceType, sourceExternalID); err != nil {
			return err
		}
		return nil
	})
	if err == nil {
		return created, true, nil
	}
	if isUniqueViolation(err) {
		// Lost the race: another caller linked this source first.
		c, lerr := lookup()
		if lerr != nil {
			return nil, false, fmt.Errorf("failed to re-read candidate after race: %w", lerr)
		}
		return c, false, nil
	}
	return nil, false, err
}

// CreateAssignment inserts an assignment with a fresh public ID.
func (s *Store) CreateAssignment(ctx context.Context, title, description string) (*domain.Assignment, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewValidationError("title", "required")
	}

	a := &domain.Assignment{
		PublicID:    domain.NewAssignmentID(),
		Title:       title,
		Description: description,
		IsActive:    true,
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO assignments (public_id, title, description)
VALUES ($1, $2, $3)
RETURNING id, created_at`, a.PublicID, a.Title, a.Description).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	return a, nil
}

// GetAssignment looks up an assignment by public ID.
func (s *Store) GetAssignment(ctx context.Context, publicID string) (*domain.Assignment, error) {
	if !domain.ValidPublicIDWithPrefix(publicID, domain.AssignmentIDPrefix) {
		return nil, NewValidationError("assignment_id", "malformed public id")
	}
	a := &domain.Assignment{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, public_id, title, description, is_active, created_at
FROM assignments WHERE public_id = $1`, publicID).
		Scan(&a.ID, &a.PublicID, &a.Title, &a.Description, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// GetAssignmentByID looks up an assignment by internal ID.
func (s *Store) GetAssignmentByID(ctx context.Context, id int64) (*domain.Assignment, error) {
	a := &domain.Assignment{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, public_id, title, description, is_active, created_at
FROM assignments WHERE id = $1`, id).
		Scan(&a.ID, &a.PublicID, &a.Title, &a.Description, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns assignments, optionally only active ones, newest
// first.
func (s *Store) ListAssignments(ctx context.Context, activeOnly bool) ([]*domain.Assignment, error) {
	query := `
SELECT id, public_id, title, description, is_active, created_at
FROM assignments`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Assignment
	for rows.Next() {
		a := &domain.Assignment{}
		if err := rows.Scan(&a.ID, &a.PublicID, &a.Title, &a.Description, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return out, nil
}

// TelegramChatID resolves the telegram chat for a submission's candidate.
// Private-chat bots use the candidate's telegram user ID as the chat ID.
func (s *Store) TelegramChatID(ctx context.Context, submissionPublicID string) (int64, error) {
	var externalID string
	err := s.db.QueryRowContext(ctx, `
SELECT cs.source_external_id
FROM submissions sub
JOIN candidate_sources cs ON cs.candidate_id = sub.candidate_id
WHERE sub.public_id = $1 AND cs.source_type = 'telegram'`, submissionPublicID).
		Scan(&externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve telegram chat: %w", err)
	}
	chatID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed telegram user id %q: %w", externalID, err)
	}
	return chatID, nil
}
