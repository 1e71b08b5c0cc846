// Package jobqueue provides the River-based asynchronous entry point for
// conversation synchronization. The API's messaging event callback enqueues a
// job here; the worker runs the same engine pass the synchronous endpoint
// uses inline.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/errandsync/internal/conversation"
	syncengine "github.com/errandsync/internal/sync"
)

// ConversationSyncArgs represents the arguments for a conversation sync job.
// Either ConversationID or the remote identity triple must be set; event
// callbacks from the messaging service only know the remote id.
type ConversationSyncArgs struct {
	ConversationID       string `json:"conversation_id,omitempty"`
	RemoteConversationID string `json:"remote_conversation_id,omitempty"`
	Namespace            string `json:"namespace,omitempty"`
	MunicipalityID       string `json:"municipality_id,omitempty"`
}

// Kind returns the job kind for River
func (ConversationSyncArgs) Kind() string {
	return "conversation_sync"
}

// syncRunner is the slice of the sync engine the worker needs
type syncRunner interface {
	SyncConversation(ctx context.Context, conversationID string) (*syncengine.Result, error)
}

// ConversationSyncWorker handles conversation sync jobs
type ConversationSyncWorker struct {
	river.WorkerDefaults[ConversationSyncArgs]
	engine        syncRunner
	conversations conversation.Store
}

// Work runs one synchronization pass for the job's conversation
func (w *ConversationSyncWorker) Work(ctx context.Context, job *river.Job[ConversationSyncArgs]) error {
	args := job.Args

	id := args.ConversationID
	if id == "" {
		conv, err := w.conversations.GetByRemoteID(ctx, args.Namespace, args.MunicipalityID, args.RemoteConversationID)
		if err != nil {
			return fmt.Errorf("failed to resolve conversation for remote id %s: %w", args.RemoteConversationID, err)
		}
		id = conv.ID
	}

	res, err := w.engine.SyncConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to sync conversation %s: %w", id, err)
	}

	log.Info().
		Str("conversation_id", id).
		Bool("notified", res.Notified).
		Msg("queued conversation sync completed")

	return nil
}

// Queue manages the River job queue
type Queue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *Config
}

// NewQueue creates a new job queue instance
func NewQueue(pool *pgxpool.Pool, engine *syncengine.Engine, conversations conversation.Store, config *Config) (*Queue, error) {
	if config == nil {
		config = DefaultConfig()
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ConversationSyncWorker{engine: engine, conversations: conversations})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Queue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the job queue workers
func (q *Queue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}

// EnqueueConversationSync queues a conversation sync job
func (q *Queue) EnqueueConversationSync(ctx context.Context, args ConversationSyncArgs) error {
	_, err := q.client.Insert(ctx, args, nil)
	if err != nil {
		return fmt.Errorf("failed to queue conversation sync job: %w", err)
	}

	return nil
}
