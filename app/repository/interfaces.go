package repository

import (
	"context"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"gorm.io/gorm"
)

// InvoicePageSize is the fixed page size of the admin invoice listing.
const InvoicePageSize = 10

// ProfileRepository reads user profiles. Profiles are owned by the auth
// provider; this service never writes them.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// SnippetRepository exposes the snippet counts used for quota checks.
type SnippetRepository interface {
	CountByUserID(ctx context.Context, userID string) (int64, error)
}

// SubscriptionRepository reads subscription rows outside of the ledger.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// InvoiceFilter narrows the admin invoice listing.
type InvoiceFilter struct {
	Page   int
	Search string
}

// InvoicePage is one page of the admin invoice listing.
type InvoicePage struct {
	Items      []models.Invoice `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// InvoiceRepository serves the read side of the append-only invoice table.
type InvoiceRepository interface {
	List(ctx context.Context, filter InvoiceFilter) (*InvoicePage, error)
	Each(ctx context.Context, search string, fn func(models.Invoice) error) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Profile      ProfileRepository
	Snippet      SnippetRepository
	Subscription SubscriptionRepository
	Invoice      InvoiceRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:      NewProfileRepository(db),
		Snippet:      NewSnippetRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Invoice:      NewInvoiceRepository(db),
	}
}
