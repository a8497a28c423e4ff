package service

import (
	"context"
	"log/slog"
	"time"

	"waterdash/internal/event"
	"waterdash/internal/ids"
	"waterdash/internal/model"
)

// AuditService appends security events to the audit store and mirrors
// them on the event bus. Recording never fails the calling operation: a
// write error is logged and the event still reaches the bus.
type AuditService struct {
	store AuditStore
	bus   event.Bus
	log   *slog.Logger
	now   func() time.Time
}

type AuditOption func(*AuditService)

func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) { s.now = now }
}

func NewAuditService(store AuditStore, bus event.Bus, log *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store: store,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuditService) Record(ctx context.Context, action, outcome, actorID, target string, details map[string]string) {
	if s == nil {
		return
	}

	e := model.AuditEvent{
		ID:         ids.New(),
		OccurredAt: s.now().UTC(),
		ActorID:    actorID,
		Action:     action,
		Outcome:    outcome,
		Target:     target,
		Details:    details,
	}

	if err := s.store.Append(ctx, e); err != nil {
		s.log.Error("audit append failed",
			slog.String("action", action),
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()))
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{
			ID:        e.ID,
			Type:      eventTypeFor(action),
			Payload:   e,
			Timestamp: e.OccurredAt.Format(time.RFC3339Nano),
			ActorID:   actorID,
		})
	}
}

func (s *AuditService) Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEvent, error) {
	return s.store.Query(ctx, q)
}

func eventTypeFor(action string) event.Type {
	switch action {
	case model.AuditLoginSuccess:
		return event.TypeLoginSucceeded
	case model.AuditLoginFailure:
		return event.TypeLoginFailed
	case model.AuditLoginBlocked:
		return event.TypeLoginBlocked
	case model.AuditLogout:
		return event.TypeLogout
	case model.AuditSessionExpired:
		return event.TypeSessionExpired
	case model.AuditPasswordChanged:
		return event.TypePasswordChanged
	case model.AuditUserDeactivated:
		return event.TypeUserDeactivated
	case model.AuditPermissionDenied:
		return event.TypePermissionDenied
	case model.AuditScopeGap:
		return event.TypeScopeGap
	case model.AuditExportIssued:
		return event.TypeExportIssued
	default:
		return event.Type(action)
	}
}
