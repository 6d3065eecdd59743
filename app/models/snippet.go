package models

import "time"

// Snippet is a stored HTML/CSS/JS fragment. Only the owner column matters for
// quota accounting; the content columns are managed by the editor.
type Snippet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);default:''" json:"title"`
	HTML      string    `gorm:"type:text" json:"html"`
	CSS       string    `gorm:"type:text" json:"css"`
	JS        string    `gorm:"type:text" json:"js"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
