package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists lifecycle-event entries. Insert runs inside the same
// transaction as the state change that produced the event; the relay worker
// drains pending entries and moves them to published or failed.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns up to limit entries still waiting for publication,
	// oldest first.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed increments the retry count; entries past MaxRetries stay
	// failed for manual inspection.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
