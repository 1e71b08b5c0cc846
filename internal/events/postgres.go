package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogTrigger records events and notifications in Postgres. The event row and
// its notification row are written in one transaction so a notification never
// exists without its event.
type LogTrigger struct {
	db *sql.DB
}

func NewLogTrigger(db *sql.DB) *LogTrigger {
	return &LogTrigger{db: db}
}

func (t *LogTrigger) ConversationUpdated(ctx context.Context, ref ErrandRef, topic string) error {
	message := fmt.Sprintf("New message in conversation %q", topic)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO errand_events (id, errand_id, namespace, municipality_id, event_type, message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, eventID, ref.ErrandID, ref.Namespace, ref.MunicipalityID, EventTypeUpdate, message)
	if err != nil {
		return fmt.Errorf("failed to insert errand event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (id, event_id, errand_id, namespace, municipality_id, subtype, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), eventID, ref.ErrandID, ref.Namespace, ref.MunicipalityID, NotificationSubtypeMessage, message)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}

	log.Debug().
		Str("errand_id", ref.ErrandID).
		Str("topic", topic).
		Msg("recorded conversation update event")

	return nil
}
