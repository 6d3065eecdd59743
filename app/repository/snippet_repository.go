package repository

import (
	"context"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"gorm.io/gorm"
)

type snippetRepository struct {
	db *gorm.DB
}

// NewSnippetRepository creates a new snippet repository instance
func NewSnippetRepository(db *gorm.DB) SnippetRepository {
	return &snippetRepository{db: db}
}

func (r *snippetRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Snippet{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
