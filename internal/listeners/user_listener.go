package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"user-management/internal/events"
	"user-management/pkg/eventbus"
)

// Notifier - внешний сервис уведомлений (почта и т.п.).
type Notifier interface {
	SendWelcome(ctx context.Context, email, nickname string) error
	SendAccountRemoved(ctx context.Context, email string) error
}

// LogNotifier - заглушка, которая только пишет в лог. Реальной отправки писем здесь нет.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendWelcome(_ context.Context, email, nickname string) error {
	n.logger.Info("Welcome notification queued", zap.String("email", email), zap.String("nickname", nickname))
	return nil
}

func (n *LogNotifier) SendAccountRemoved(_ context.Context, email string) error {
	n.logger.Info("Account removal notification queued", zap.String("email", email))
	return nil
}

type UserListener struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewUserListener(notifier Notifier, logger *zap.Logger) *UserListener {
	return &UserListener{notifier: notifier, logger: logger}
}

func (l *UserListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.UserCreatedEventName, l.handleUserCreated)
	bus.Subscribe(events.UserDeletedEventName, l.handleUserDeleted)
	l.logger.Info("UserListener subscribed",
		zap.Strings("events", []string{events.UserCreatedEventName, events.UserDeletedEventName}))
}

func (l *UserListener) handleUserCreated(ctx context.Context, e eventbus.Event) error {
	event, ok := e.(events.UserCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T for %s", e, e.Name())
	}
	l.logger.Info("User created",
		zap.String("user_id", event.UserID.String()),
		zap.String("actor", event.ActorID),
	)
	return l.notifier.SendWelcome(ctx, event.Email, event.Nickname)
}

func (l *UserListener) handleUserDeleted(ctx context.Context, e eventbus.Event) error {
	event, ok := e.(events.UserDeletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T for %s", e, e.Name())
	}
	l.logger.Info("User deleted",
		zap.String("user_id", event.UserID.String()),
		zap.String("actor", event.ActorID),
	)
	return l.notifier.SendAccountRemoved(ctx, event.Email)
}
