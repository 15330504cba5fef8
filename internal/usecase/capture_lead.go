package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/lead-relay/internal/entity"
)

type IntakeState string

const (
	StateValidating    IntakeState = "validating"
	StateResolving     IntakeState = "resolving_schema"
	StateDeduplicating IntakeState = "deduplicating"
	StateCreating      IntakeState = "creating"
	StateNotifying     IntakeState = "notifying"
	StateDone          IntakeState = "done"
	StateAborted       IntakeState = "aborted"
)

const (
	DefaultNotifyWait    = 300 * time.Millisecond
	DefaultNotifyTimeout = 30 * time.Second
)

type CaptureLeadOptions struct {
	// NotifyWait bounds how long SubmitLead waits for the notification
	// outcome before answering with Pending set.
	NotifyWait time.Duration
	// NotifyTimeout bounds the detached notification itself.
	NotifyTimeout time.Duration
	// LookupFailureAsMiss treats a failed duplicate lookup as "no duplicate
	// known" instead of failing the call.
	LookupFailureAsMiss bool
}

// CaptureLeadUseCase is the intake pipeline. It keeps no state between
// calls besides what the resolver caches.
type CaptureLeadUseCase struct {
	Store    entity.LeadStoreInterface
	Resolver MappingResolver
	Notifier LeadNotifier

	notifyWait          time.Duration
	notifyTimeout       time.Duration
	lookupFailureAsMiss bool

	inflight sync.WaitGroup
}

func NewCaptureLeadUseCase(
	store entity.LeadStoreInterface,
	resolver MappingResolver,
	notifier LeadNotifier,
	opts CaptureLeadOptions,
) *CaptureLeadUseCase {
	if opts.NotifyWait <= 0 {
		opts.NotifyWait = DefaultNotifyWait
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = DefaultNotifyTimeout
	}
	return &CaptureLeadUseCase{
		Store:               store,
		Resolver:            resolver,
		Notifier:            notifier,
		notifyWait:          opts.NotifyWait,
		notifyTimeout:       opts.NotifyTimeout,
		lookupFailureAsMiss: opts.LookupFailureAsMiss,
	}
}

// Execute runs one submission through the pipeline. The returned result is
// always filled in; err is non-nil exactly when result.OK is false.
// Notification failures never produce an error.
func (uc *CaptureLeadUseCase) Execute(ctx context.Context, input entity.LeadSubmission) (entity.IntakeResult, error) {
	lead := input.Normalize()
	log := zap.L().With(zap.String("request_id", uuid.NewString()), zap.String("email", lead.Email))
	log.Debug("intake: started", zap.String("state", string(StateValidating)))

	if errs := ValidateLeadSubmission(lead); len(errs) > 0 {
		return uc.abort(log, StateValidating, &DomainError{
			Code:    CodeInvalidInput,
			Message: joinValidationErrors(errs),
		})
	}

	mapping, err := uc.Resolver.Resolve(ctx)
	if err != nil {
		if !IsTechnicalError(err) {
			err = &TechnicalError{Code: CodeSchemaError, Message: err.Error(), Err: err}
		}
		return uc.abort(log, StateResolving, err)
	}

	log.Debug("intake: transition", zap.String("state", string(StateDeduplicating)))
	if !mapping.Email.Present() {
		log.Warn("intake: store has no email property, duplicate check skipped")
	} else {
		existing, err := uc.Store.FindByEmail(ctx, mapping, lead.Email)
		switch {
		case err != nil && uc.lookupFailureAsMiss:
			log.Warn("intake: duplicate lookup failed, treating as not found", zap.Error(err))
		case err != nil:
			return uc.abort(log, StateDeduplicating, &TechnicalError{Code: CodeStoreError, Message: err.Error(), Err: err})
		case existing != nil:
			log.Info("intake: duplicate lead", zap.String("record_id", existing.ID), zap.String("state", string(StateDone)))
			return entity.IntakeResult{
				OK:           true,
				Duplicate:    true,
				RecordID:     existing.ID,
				Notification: entity.NotificationOutcome{Skipped: true},
			}, nil
		}
	}

	log.Debug("intake: transition", zap.String("state", string(StateCreating)))
	record, err := uc.Store.CreateRecord(ctx, mapping, lead)
	if err == nil && (record == nil || record.ID == "") {
		err = errMissingRecordID
	}
	if err != nil {
		return uc.abort(log, StateCreating, &TechnicalError{Code: CodeStoreError, Message: err.Error(), Err: err})
	}
	log = log.With(zap.String("record_id", record.ID))

	log.Debug("intake: transition", zap.String("state", string(StateNotifying)))
	outcome := uc.dispatchNotification(ctx, log, lead, record)

	log.Info("intake: lead captured",
		zap.String("state", string(StateDone)),
		zap.Bool("notified", outcome.Delivered),
		zap.Bool("notify_pending", outcome.Pending),
	)
	return entity.IntakeResult{
		OK:           true,
		Duplicate:    false,
		RecordID:     record.ID,
		Notification: outcome,
	}, nil
}

// dispatchNotification runs the notifier detached from the caller's
// cancellation and waits at most notifyWait for its outcome.
func (uc *CaptureLeadUseCase) dispatchNotification(ctx context.Context, log *zap.Logger, lead entity.LeadSubmission, record *entity.LeadRecord) entity.NotificationOutcome {
	if uc.Notifier == nil {
		return entity.NotificationOutcome{Delivered: false, Error: errTransportNotConfigured}
	}

	done := make(chan entity.NotificationOutcome, 1)
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.notifyTimeout)

	uc.inflight.Add(1)
	go func() {
		defer uc.inflight.Done()
		defer cancel()

		outcome := uc.Notifier.Notify(notifyCtx, lead, record)
		done <- outcome
		if outcome.Delivered {
			log.Debug("notify: delivered")
		} else {
			log.Warn("notify: not delivered", zap.String("error", outcome.Error))
		}
	}()

	timer := time.NewTimer(uc.notifyWait)
	defer timer.Stop()

	select {
	case outcome := <-done:
		return outcome
	case <-timer.C:
	case <-ctx.Done():
	}
	return entity.NotificationOutcome{Delivered: false, Pending: true}
}

// Wait blocks until every detached notification has finished.
func (uc *CaptureLeadUseCase) Wait() {
	uc.inflight.Wait()
}

func (uc *CaptureLeadUseCase) abort(log *zap.Logger, at IntakeState, err error) (entity.IntakeResult, error) {
	log.Warn("intake: aborted",
		zap.String("state", string(StateAborted)),
		zap.String("failed_at", string(at)),
		zap.Error(err),
	)
	result := entity.IntakeResult{OK: false, Error: err.Error()}
	if de, ok := err.(*DomainError); ok {
		result.Error = de.Code
		result.Detail = de.Message
	}
	return result, err
}
