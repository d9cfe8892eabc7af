package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/pkg/kafka"
	"github.com/prostokit/excursions/pkg/logger"
)

const (
	TopicUserRegistered = "excursions.user.registered"
	TopicSessionRevoked = "excursions.session.revoked"

	source        = "excursions-backend"
	aggregateUser = "user"
)

// Publisher emits domain events for downstream consumers. Event delivery is
// best-effort: the session flows that trigger events never fail because a
// broker is down.
type Publisher interface {
	UserRegistered(ctx context.Context, user *domain.User)
	SessionRevoked(ctx context.Context, userID string)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a Publisher backed by the Kafka producer.
func NewPublisher(producer *kafka.Producer, log *slog.Logger) Publisher {
	return &kafkaPublisher{producer: producer, logger: log}
}

type userRegisteredPayload struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *kafkaPublisher) UserRegistered(ctx context.Context, user *domain.User) {
	p.publish(ctx, TopicUserRegistered, "user.registered", user.ID, userRegisteredPayload{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	})
}

type sessionRevokedPayload struct {
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
}

func (p *kafkaPublisher) SessionRevoked(ctx context.Context, userID string) {
	p.publish(ctx, TopicSessionRevoked, "session.revoked", userID, sessionRevokedPayload{
		UserID:    userID,
		RevokedAt: time.Now().UTC(),
	})
}

func (p *kafkaPublisher) publish(ctx context.Context, topic, eventType, aggregateID string, payload any) {
	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateUser, source, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// NoopPublisher discards all events. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) UserRegistered(context.Context, *domain.User) {}
func (NoopPublisher) SessionRevoked(context.Context, string)      {}
