package types

// Filter - параметры выборки списка: поиск, фильтр по роли и пагинация.
// http://localhost:8080/api/users?search=john&role=MANAGER&limit=10&page=2
type Filter struct {
	Search string `json:"search,omitempty"`
	Role   string `json:"role,omitempty"`
	Limit  uint64 `json:"limit"`
	Offset uint64 `json:"offset"`
	Page   uint64 `json:"page"`
}
