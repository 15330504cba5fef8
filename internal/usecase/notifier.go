package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/lead-relay/internal/entity"
)

const errTransportNotConfigured = "notification transport not configured"

// Notifier formats the operator message for a new lead. It never returns
// an error: every transport failure ends up in the outcome.
type Notifier struct {
	transport NotificationTransport
}

func NewNotifier(transport NotificationTransport) *Notifier {
	return &Notifier{transport: transport}
}

func (n *Notifier) Notify(ctx context.Context, lead entity.LeadSubmission, record *entity.LeadRecord) (outcome entity.NotificationOutcome) {
	if n == nil || n.transport == nil {
		return entity.NotificationOutcome{Delivered: false, Error: errTransportNotConfigured}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = entity.NotificationOutcome{Delivered: false, Error: fmt.Sprintf("notification transport panicked: %v", r)}
		}
	}()

	subject, body := FormatLeadMessage(lead, record)
	if err := n.transport.Send(ctx, subject, body); err != nil {
		zap.L().Warn("notify: delivery failed", zap.String("email", lead.Email), zap.Error(err))
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = CodeNotificationError
		}
		return entity.NotificationOutcome{Delivered: false, Error: msg}
	}
	return entity.NotificationOutcome{Delivered: true}
}

// FormatLeadMessage builds the subject and plain-text body sent to the operator.
func FormatLeadMessage(lead entity.LeadSubmission, record *entity.LeadRecord) (string, string) {
	subject := fmt.Sprintf("New lead: %s <%s>", lead.DisplayName(), lead.Email)

	ref := ""
	if record != nil {
		ref = record.URL
		if ref == "" && record.ID != "" {
			ref = "record " + record.ID
		}
	}

	body := strings.Join([]string{
		"Name: " + lead.Name,
		"Email: " + lead.Email,
		"Source: " + lead.Source,
		"Note: " + lead.Note,
		"Record: " + ref,
	}, "\n")
	return subject, body
}
