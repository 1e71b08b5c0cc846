package attachments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists errand attachments in the errand_attachments table
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, a *ErrandAttachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
	INSERT INTO errand_attachments (
		id, errand_id, namespace, municipality_id, file_name, content_type, content, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, NOW()
	) RETURNING created_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		a.ID, a.ErrandID, a.Namespace, a.MunicipalityID, a.FileName, a.ContentType, a.Content,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add errand attachment: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListByErrand(ctx context.Context, namespace, municipalityID, errandID string) ([]*ErrandAttachment, error) {
	query := `
	SELECT id, errand_id, namespace, municipality_id, file_name, content_type, content, created_at
	FROM errand_attachments
	WHERE namespace = $1 AND municipality_id = $2 AND errand_id = $3
	ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, namespace, municipalityID, errandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query errand attachments: %w", err)
	}
	defer rows.Close()

	var out []*ErrandAttachment
	for rows.Next() {
		var a ErrandAttachment
		err := rows.Scan(
			&a.ID, &a.ErrandID, &a.Namespace, &a.MunicipalityID,
			&a.FileName, &a.ContentType, &a.Content, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan errand attachment: %w", err)
		}
		out = append(out, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return out, nil
}
