package authz

import (
	"sort"
	"strings"

	apperrors "user-management/pkg/errors"
)

type Role string

const (
	RoleAnonymous     Role = "ANONYMOUS"
	RoleAuthenticated Role = "AUTHENTICATED"
	RoleManager       Role = "MANAGER"
	RoleAdmin         Role = "ADMIN"
)

var allRoles = []Role{RoleAnonymous, RoleAuthenticated, RoleManager, RoleAdmin}

// ParseRole нормализует строку (регистр, пробелы) и проверяет, что роль известна.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperrors.ErrUnknownRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// RoleSet - множество ролей, допущенных к операции.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// IsAllowed - чистая проверка членства; пустое множество не пускает никого.
func IsAllowed(role Role, allowed RoleSet) bool {
	return allowed.Contains(role)
}

// Identity - аутентифицированный вызывающий в рамках одного запроса.
type Identity struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Check пропускает identity дальше, если её роль входит в allowed.
// Отказ здесь - это 403, а не 401.
func Check(identity *Identity, allowed RoleSet) (*Identity, error) {
	if identity == nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !IsAllowed(identity.Role, allowed) {
		return nil, apperrors.ErrForbidden
	}
	return identity, nil
}
