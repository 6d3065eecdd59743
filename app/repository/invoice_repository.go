package repository

import (
	"context"
	"strings"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"gorm.io/gorm"
)

const exportBatchSize = 200

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// likeEscaper makes LIKE wildcards in user input match literally. SQLite has
// no default escape character, so every LIKE names '!' explicitly.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// searchScope matches email, full name and plan type case-insensitively.
func searchScope(search string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.ToLower(strings.TrimSpace(search))
		if search == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(search) + "%"
		return db.Where(
			"LOWER(email) LIKE ? ESCAPE '!' OR LOWER(full_name) LIKE ? ESCAPE '!' OR LOWER(plan_type) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern,
		)
	}
}

// List returns invoices newest first. Pages start at 1; anything lower is
// treated as the first page.
func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) (*InvoicePage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}

	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Invoice{}).Scopes(searchScope(filter.Search)).Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]models.Invoice, 0, InvoicePageSize)
	err := db.Scopes(searchScope(filter.Search)).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * InvoicePageSize).
		Limit(InvoicePageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + InvoicePageSize - 1) / InvoicePageSize)
	return &InvoicePage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   InvoicePageSize,
		TotalPages: totalPages,
	}, nil
}

// Each walks every matching invoice in batches, newest first. Iteration
// stops at the first error returned by fn.
func (r *invoiceRepository) Each(ctx context.Context, search string, fn func(models.Invoice) error) error {
	offset := 0
	for {
		var batch []models.Invoice
		err := r.db.WithContext(ctx).Scopes(searchScope(search)).
			Order("created_at DESC").Order("id DESC").
			Offset(offset).Limit(exportBatchSize).
			Find(&batch).Error
		if err != nil {
			return err
		}
		for _, inv := range batch {
			if err := fn(inv); err != nil {
				return err
			}
		}
		if len(batch) < exportBatchSize {
			return nil
		}
		offset += len(batch)
	}
}
