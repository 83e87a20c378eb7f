package security

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
)

// EventSink persists authentication events
type EventSink interface {
	Archive(ctx context.Context, event *models.AuthEvent) error
}

// repositorySink appends events to the auth-event collection
type repositorySink struct {
	repo repositories.AuthEventRepository
}

// NewRepositorySink writes events through the authentication event repository
func NewRepositorySink(repo repositories.AuthEventRepository) EventSink {
	return &repositorySink{repo: repo}
}

func (s *repositorySink) Archive(ctx context.Context, event *models.AuthEvent) error {
	return s.repo.Add(ctx, event)
}

// AuthEventRecorder is the append-only authentication event log. It sits
// beside the consistency layer: sink failures are logged and never returned
// to the flow that produced the event.
type AuthEventRecorder struct {
	logger *logger.Logger
	repo   repositories.AuthEventRepository
	sinks  []EventSink
	now    func() time.Time
}

// NewAuthEventRecorder creates a recorder writing to the repository and any extra sinks
func NewAuthEventRecorder(logger *logger.Logger, repo repositories.AuthEventRepository, extra ...EventSink) *AuthEventRecorder {
	sinks := append([]EventSink{NewRepositorySink(repo)}, extra...)
	return &AuthEventRecorder{
		logger: logger,
		repo:   repo,
		sinks:  sinks,
		now:    time.Now,
	}
}

// Record appends one event and returns it
func (r *AuthEventRecorder) Record(ctx context.Context, userName string, eventType models.AuthEventType, details string) *models.AuthEvent {
	event := &models.AuthEvent{
		EventID:   uuid.NewString(),
		UserName:  userName,
		Type:      eventType,
		Details:   details,
		CreatedAt: r.now().UTC(),
	}

	for _, sink := range r.sinks {
		if err := sink.Archive(ctx, event); err != nil {
			r.logger.WithField("event_id", event.EventID).
				WithField("event_type", string(eventType)).
				WithError(err).Error("Failed to record authentication event")
		}
	}
	return event
}

// ListByUser returns the events recorded for userName, oldest first
func (r *AuthEventRecorder) ListByUser(ctx context.Context, userName string) ([]*models.AuthEvent, error) {
	return r.repo.ListByUser(ctx, userName)
}
