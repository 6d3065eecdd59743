package models

import "time"

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// Profile is the identity provider's view of a user. Rows are written by the
// registration flow; billing only reads them.
type Profile struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(200);index" json:"email"`
	FullName  string    `gorm:"type:varchar(150);default:''" json:"full_name"`
	Role      string    `gorm:"type:varchar(50);default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == ROLE_ADMIN
}
