package errands

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore reads errands from the errands table
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, namespace, municipalityID, errandID string) (bool, error) {
	var exists bool
	query := `
	SELECT EXISTS (
		SELECT 1 FROM errands
		WHERE namespace = $1 AND municipality_id = $2 AND id = $3
	)`
	err := s.db.QueryRowContext(ctx, query, namespace, municipalityID, errandID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check errand existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AssignedHandler(ctx context.Context, namespace, municipalityID, errandID string) (string, error) {
	var handler sql.NullString
	query := `
	SELECT assigned_handler FROM errands
	WHERE namespace = $1 AND municipality_id = $2 AND id = $3
	`
	err := s.db.QueryRowContext(ctx, query, namespace, municipalityID, errandID).Scan(&handler)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get assigned handler: %w", err)
	}
	if !handler.Valid {
		return "", nil
	}
	return handler.String, nil
}
