package controllers

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/ManuelReschke/SnippetCanvas/app/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

var invoiceCSVHeader = []string{
	"id", "created_at", "user_id", "email", "full_name", "plan_type",
	"amount", "currency", "snippet_limit_added", "status", "checkout_session_id", "payment_method",
}

type AdminInvoicesController struct {
	invoices repository.InvoiceRepository
	log      zerolog.Logger
}

func NewAdminInvoicesController(invoices repository.InvoiceRepository, log zerolog.Logger) *AdminInvoicesController {
	return &AdminInvoicesController{invoices: invoices, log: log}
}

// HandleListInvoices returns one page of invoices, newest first.
func (ac *AdminInvoicesController) HandleListInvoices(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	search := strings.TrimSpace(c.Query("search"))

	result, err := ac.invoices.List(c.UserContext(), repository.InvoiceFilter{Page: page, Search: search})
	if err != nil {
		ac.log.Error().Err(err).Msg("invoice listing failed")
		return jsonError(c, fiber.StatusInternalServerError, "Failed to load invoices")
	}
	return c.JSON(result)
}

// HandleExportInvoices writes every invoice matching the search as CSV.
func (ac *AdminInvoicesController) HandleExportInvoices(c *fiber.Ctx) error {
	search := strings.TrimSpace(c.Query("search"))
	filename := "invoices-" + time.Now().UTC().Format("20060102") + ".csv"

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	w := csv.NewWriter(c.Response().BodyWriter())
	if err := w.Write(invoiceCSVHeader); err != nil {
		return err
	}
	err := ac.invoices.Each(c.UserContext(), search, func(inv models.Invoice) error {
		return w.Write(invoiceRecord(inv))
	})
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if err != nil {
		ac.log.Error().Err(err).Msg("invoice export failed")
		c.Response().ResetBody()
		return jsonError(c, fiber.StatusInternalServerError, "Failed to export invoices")
	}
	return nil
}

func invoiceRecord(inv models.Invoice) []string {
	return []string{
		inv.ID,
		inv.CreatedAt.UTC().Format(time.RFC3339),
		csvText(inv.UserID),
		csvText(inv.Email),
		csvText(inv.FullName),
		csvText(inv.PlanType),
		strconv.FormatFloat(inv.Amount, 'f', 2, 64),
		csvText(strings.ToUpper(inv.Currency)),
		strconv.FormatInt(inv.SnippetLimitAdded, 10),
		csvText(inv.Status),
		csvText(inv.CheckoutSessionID),
		csvText(inv.PaymentMethod),
	}
}

// csvText keeps spreadsheets from evaluating user-supplied cells as formulas.
func csvText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
