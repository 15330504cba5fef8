package usecase

import (
	"context"

	"github.com/xavierca1/lead-relay/internal/entity"
)

// NotificationTransport delivers one operator message. Implementations are
// built once and shared across calls.
type NotificationTransport interface {
	Send(ctx context.Context, subject, body string) error
}

type LeadNotifier interface {
	Notify(ctx context.Context, lead entity.LeadSubmission, record *entity.LeadRecord) entity.NotificationOutcome
}

type MappingResolver interface {
	Resolve(ctx context.Context) (*entity.SchemaMapping, error)
}
