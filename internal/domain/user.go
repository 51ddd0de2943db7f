package domain

import "strings"

// UserRole controls what a user may do beyond owning their own content
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleBDStaff   UserRole = "BD_STAFF"
	RoleEstimator UserRole = "ESTIMATOR"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleBDStaff, RoleEstimator:
		return true
	}
	return false
}

// User is the local projection of an authenticated account
type User struct {
	BaseModel
	Email     string   `gorm:"type:varchar(255);not null;uniqueIndex:uq_users_email" json:"email"`
	FirstName string   `gorm:"type:varchar(100)" json:"firstName"`
	LastName  string   `gorm:"type:varchar(100)" json:"lastName"`
	Role      UserRole `gorm:"type:varchar(20);not null;default:'BD_STAFF'" json:"role"`
	IsActive  bool     `gorm:"not null;default:true" json:"isActive"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName falls back to the email when no name is recorded
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
