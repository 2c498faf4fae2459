package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	service "bank-reconciliation-backend/internal/services/reconciliation"
)

// parseDay accepts ISO dates and the dd-mm-yyyy form used by the frontend.
func parseDay(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (h *ReconciliationHandler) CreateExpense(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	var payload struct {
		VendorName string          `json:"vendor_name"`
		Amount     decimal.Decimal `json:"amount"`
		Date       string          `json:"expense_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, ok := parseDay(payload.Date)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expense_date, expected yyyy-mm-dd"})
		return
	}

	expense, err := h.service.CreateExpense(c.Request.Context(), businessID, service.CreateExpenseRequest{
		VendorName: payload.VendorName,
		Amount:     payload.Amount,
		Date:       date,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "expense created", "expense": expense})
}

func (h *ReconciliationHandler) CreateInvoice(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	var payload struct {
		InvoiceNumber string          `json:"invoice_number"` // optional
		ContactName   string          `json:"contact_name"`
		Amount        decimal.Decimal `json:"amount"`
		Status        string          `json:"status"`
		DueDate       string          `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	dueDate, ok := parseDay(payload.DueDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date, expected yyyy-mm-dd"})
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), businessID, service.CreateInvoiceRequest{
		InvoiceNumber: payload.InvoiceNumber,
		ContactName:   payload.ContactName,
		Amount:        payload.Amount,
		Status:        payload.Status,
		DueDate:       dueDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "invoice created", "invoice": invoice})
}

func (h *ReconciliationHandler) RecordPayment(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	invoiceID, ok := uuidParam(c, "invoiceId")
	if !ok {
		return
	}
	var payload struct {
		Amount      decimal.Decimal `json:"amount"`
		PaymentDate string          `json:"payment_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, ok := parseDay(payload.PaymentDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_date, expected yyyy-mm-dd"})
		return
	}

	payment, err := h.service.RecordPayment(c.Request.Context(), businessID, invoiceID, payload.Amount, date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "payment recorded", "payment": payment})
}
