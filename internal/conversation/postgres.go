package conversation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists conversations in the conversations table
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const conversationColumns = `
	id, remote_id, errand_id, namespace, municipality_id,
	topic, type, relation_ids, target_relation_id,
	latest_synced_sequence_number, version, created_at, updated_at
`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetByRemoteID(ctx context.Context, namespace, municipalityID, remoteID string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + `
	FROM conversations
	WHERE namespace = $1 AND municipality_id = $2 AND remote_id = $3`
	return s.scanOne(s.db.QueryRowContext(ctx, query, namespace, municipalityID, remoteID))
}

func (s *PostgresStore) Create(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
	INSERT INTO conversations (
		id, remote_id, errand_id, namespace, municipality_id,
		topic, type, relation_ids, target_relation_id,
		latest_synced_sequence_number, version, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, NOW(), NOW()
	) RETURNING version, created_at, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		c.ID, c.RemoteConversationID, c.ErrandID, c.Namespace, c.MunicipalityID,
		c.Topic, string(c.Type), pq.Array(c.RelationIDs), c.TargetRelationID,
		c.LatestSyncedSequenceNumber,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// Save writes the record back with an optimistic version check. A pass that
// lost the race gets ErrVersionConflict and must re-read before retrying.
func (s *PostgresStore) Save(ctx context.Context, c *Conversation) error {
	query := `
	UPDATE conversations SET
		topic = $1,
		type = $2,
		relation_ids = $3,
		latest_synced_sequence_number = $4,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $5 AND version = $6
	RETURNING version, updated_at
	`

	err := s.db.QueryRowContext(
		ctx, query,
		c.Topic, string(c.Type), pq.Array(c.RelationIDs),
		c.LatestSyncedSequenceNumber,
		c.ID, c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		// Either the row is gone or the version moved; distinguish for the caller
		var exists bool
		if checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, c.ID,
		).Scan(&exists); checkErr != nil {
			return fmt.Errorf("failed to check conversation existence: %w", checkErr)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var typ string
	err := row.Scan(
		&c.ID, &c.RemoteConversationID, &c.ErrandID, &c.Namespace, &c.MunicipalityID,
		&c.Topic, &typ, pq.Array(&c.RelationIDs), &c.TargetRelationID,
		&c.LatestSyncedSequenceNumber, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	c.Type = ConversationType(typ)
	return &c, nil
}
