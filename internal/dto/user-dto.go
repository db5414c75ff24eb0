package dto

import (
	"github.com/aarondl/null/v8"
	"github.com/google/uuid"

	"user-management/internal/authz"
	"user-management/internal/entities"
	"user-management/pkg/utils"
)

type CreateUserDTO struct {
	Email              string  `json:"email" validate:"required,custom_email,max=255"`
	Password           string  `json:"password" validate:"required,strong_password,max=72"`
	Nickname           string  `json:"nickname" validate:"omitempty,nickname"`
	FirstName          *string `json:"first_name" validate:"omitempty,max=100"`
	LastName           *string `json:"last_name" validate:"omitempty,max=100"`
	Bio                *string `json:"bio" validate:"omitempty,max=500"`
	ProfilePictureURL  *string `json:"profile_picture_url" validate:"omitempty,url,max=255"`
	GithubProfileURL   *string `json:"github_profile_url" validate:"omitempty,url,max=255"`
	LinkedinProfileURL *string `json:"linkedin_profile_url" validate:"omitempty,url,max=255"`
	Role               string  `json:"role" validate:"omitempty,oneof=ANONYMOUS AUTHENTICATED MANAGER ADMIN"`
}

// UpdateUserDTO - частичное обновление: null.String без значения поле не трогает.
type UpdateUserDTO struct {
	Email              null.String `json:"email" validate:"omitempty,custom_email,max=255"`
	Nickname           null.String `json:"nickname" validate:"omitempty,nickname"`
	FirstName          null.String `json:"first_name" validate:"omitempty,max=100"`
	LastName           null.String `json:"last_name" validate:"omitempty,max=100"`
	Bio                null.String `json:"bio" validate:"omitempty,max=500"`
	ProfilePictureURL  null.String `json:"profile_picture_url" validate:"omitempty,url,max=255"`
	GithubProfileURL   null.String `json:"github_profile_url" validate:"omitempty,url,max=255"`
	LinkedinProfileURL null.String `json:"linkedin_profile_url" validate:"omitempty,url,max=255"`
	Role               null.String `json:"role" validate:"omitempty,oneof=ANONYMOUS AUTHENTICATED MANAGER ADMIN"`
}

// IsEmpty - в запросе нет ни одного поля для обновления.
func (d UpdateUserDTO) IsEmpty() bool {
	return !d.Email.Valid && !d.Nickname.Valid && !d.FirstName.Valid && !d.LastName.Valid &&
		!d.Bio.Valid && !d.ProfilePictureURL.Valid && !d.GithubProfileURL.Valid &&
		!d.LinkedinProfileURL.Valid && !d.Role.Valid
}

type LinkDTO struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method"`
}

type UserDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Nickname           string     `json:"nickname"`
	Email              string     `json:"email"`
	FirstName          *string    `json:"first_name"`
	LastName           *string    `json:"last_name"`
	Bio                *string    `json:"bio"`
	ProfilePictureURL  *string    `json:"profile_picture_url"`
	GithubProfileURL   *string    `json:"github_profile_url"`
	LinkedinProfileURL *string    `json:"linkedin_profile_url"`
	Role               authz.Role `json:"role"`
	LastLoginAt        *string    `json:"last_login_at"`
	CreatedAt          *string    `json:"created_at"`
	UpdatedAt          *string    `json:"updated_at"`
	Links              []LinkDTO  `json:"links"`
}

// NewUserLinks строит ссылки на операции над пользователем относительно baseURL (схема + хост).
func NewUserLinks(baseURL string, id uuid.UUID) []LinkDTO {
	self := baseURL + "/api/users/" + id.String()
	return []LinkDTO{
		{Rel: "self", Href: self, Method: "GET"},
		{Rel: "update", Href: self, Method: "PUT"},
		{Rel: "delete", Href: self, Method: "DELETE"},
		{Rel: "list", Href: baseURL + "/api/users", Method: "GET"},
	}
}

func UserToDTO(u *entities.User, baseURL string) UserDTO {
	return UserDTO{
		ID:                 u.ID,
		Nickname:           u.Nickname,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Bio:                u.Bio,
		ProfilePictureURL:  u.ProfilePictureURL,
		GithubProfileURL:   u.GithubProfileURL,
		LinkedinProfileURL: u.LinkedinProfileURL,
		Role:               u.Role,
		LastLoginAt:        utils.FormatTimePtr(u.LastLoginAt),
		CreatedAt:          utils.FormatTimePtr(u.CreatedAt),
		UpdatedAt:          utils.FormatTimePtr(u.UpdatedAt),
		Links:              NewUserLinks(baseURL, u.ID),
	}
}
