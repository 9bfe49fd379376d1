package models

import "time"

// RoleName identifies a role a user can hold.
type RoleName string

const (
	RoleAdmin   RoleName = "Admin"
	RoleStudent RoleName = "Student"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	PasswordHash string     `db:"password" json:"-"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	CreateAt     time.Time  `db:"create_at" json:"create_at"`
	Roles        []RoleName `db:"-" json:"roles"`
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(role RoleName) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the page count for a result window.
func NewPagination(page, pageSize, total int) *Pagination {
	p := &Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	if pageSize > 0 {
		p.TotalPages = (total + pageSize - 1) / pageSize
	}
	return p
}

// MaxPage bounds client supplied page numbers so offsets stay in range.
const MaxPage = 1_000_000

// Offset returns the row offset for a 1-based page.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 0 {
		pageSize = 0
	}
	return (page - 1) * pageSize
}
