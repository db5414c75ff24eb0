package events

import "github.com/google/uuid"

const (
	UserCreatedEventName = "user.created"
	UserDeletedEventName = "user.deleted"
)

// UserCreatedEvent - пользователь создан администратором или менеджером.
type UserCreatedEvent struct {
	UserID   uuid.UUID
	Email    string
	Nickname string
	ActorID  string
}

func (e UserCreatedEvent) Name() string { return UserCreatedEventName }

type UserDeletedEvent struct {
	UserID  uuid.UUID
	Email   string
	ActorID string
}

func (e UserDeletedEvent) Name() string { return UserDeletedEventName }
