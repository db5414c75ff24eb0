// Файл: internal/entities/user-entity.go
package entities

import (
	"time"

	"github.com/google/uuid"

	"user-management/internal/authz"
	"user-management/pkg/types"
)

type User struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Nickname string    `json:"nickname" db:"nickname"`
	Email    string    `json:"email" db:"email"`

	FirstName          *string `json:"first_name,omitempty" db:"first_name"`
	LastName           *string `json:"last_name,omitempty" db:"last_name"`
	Bio                *string `json:"bio,omitempty" db:"bio"`
	ProfilePictureURL  *string `json:"profile_picture_url,omitempty" db:"profile_picture_url"`
	GithubProfileURL   *string `json:"github_profile_url,omitempty" db:"github_profile_url"`
	LinkedinProfileURL *string `json:"linkedin_profile_url,omitempty" db:"linkedin_profile_url"`

	Role authz.Role `json:"role" db:"role"`

	HashedPassword string `json:"-" db:"hashed_password"`

	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	IsLocked      bool       `json:"is_locked" db:"is_locked"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`

	types.BaseEntity
}

// Identity - проекция пользователя, которой достаточно для авторизации.
func (u *User) Identity() *authz.Identity {
	return &authz.Identity{Email: u.Email, Role: u.Role}
}
