package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/models"
	service "bank-reconciliation-backend/internal/services/reconciliation"
	"bank-reconciliation-backend/internal/statement"
	"bank-reconciliation-backend/internal/worker"
)

// Scheduler hands an import to the background workers.
type Scheduler interface {
	Enqueue(ctx context.Context, job worker.Job) error
}

type ReconciliationHandler struct {
	service      *service.ReconciliationService
	scheduler    Scheduler
	logger       *slog.Logger
	maxFileBytes int64
}

func NewReconciliationHandler(s *service.ReconciliationService, scheduler Scheduler, logger *slog.Logger, maxFileBytes int64) *ReconciliationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationHandler{service: s, scheduler: scheduler, logger: logger, maxFileBytes: maxFileBytes}
}

var errFileTooLarge = errors.New("file too large")

// readUpload loads the multipart "file" field into memory.
func (h *ReconciliationHandler) readUpload(c *gin.Context) ([]byte, *multipart.FileHeader, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return nil, nil, false
	}
	defer file.Close()

	if h.maxFileBytes > 0 && header.Size > h.maxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errFileTooLarge.Error(), "max_bytes": h.maxFileBytes})
		return nil, nil, false
	}
	var r io.Reader = file
	if h.maxFileBytes > 0 {
		r = io.LimitReader(file, h.maxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return nil, nil, false
	}
	if h.maxFileBytes > 0 && int64(len(data)) > h.maxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errFileTooLarge.Error(), "max_bytes": h.maxFileBytes})
		return nil, nil, false
	}
	return data, header, true
}

// Upload stores a statement with its column mapping and schedules the import.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	mapping, err := parseMapping(c.PostForm("mapping"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := mapping.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, header, ok := h.readUpload(c)
	if !ok {
		return
	}

	h.logger.Info("statement received", "business_id", businessID, "file", header.Filename, "bytes", len(data))

	imp, err := h.service.CreateImport(c.Request.Context(), service.CreateImportRequest{
		BusinessID: businessID,
		FileName:   header.Filename,
		FileType:   c.PostForm("file_type"),
		SourceBank: c.PostForm("source_bank"),
		Data:       data,
		Mapping:    mapping,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.scheduler.Enqueue(c.Request.Context(), worker.Job{ImportID: imp.ID, BusinessID: businessID}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"import_id": imp.ID.String(),
		"status":    imp.Status,
	})
}

// Preview returns the header and first rows so the user can build a mapping.
func (h *ReconciliationHandler) Preview(c *gin.Context) {
	if _, ok := uuidParam(c, "businessId"); !ok {
		return
	}
	mapping := models.ColumnMapping{SkipRows: 1}
	if raw := c.PostForm("mapping"); raw != "" {
		m, err := parseMapping(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mapping = m
	}
	data, header, ok := h.readUpload(c)
	if !ok {
		return
	}
	fileType := c.PostForm("file_type")
	if fileType == "" {
		fileType = statement.DetectFileType(header.Filename)
	}
	preview, err := h.service.PreviewFile(data, fileType, mapping)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *ReconciliationHandler) GetImport(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}
	imp, err := h.service.GetImport(c.Request.Context(), businessID, importID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (h *ReconciliationHandler) GetImportStats(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}
	stats, err := h.service.GetImportStats(c.Request.Context(), businessID, importID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReconciliationHandler) CancelImport(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}
	imp, err := h.service.CancelImport(c.Request.Context(), businessID, importID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (h *ReconciliationHandler) RerunMatching(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}
	summary, err := h.service.RerunMatching(c.Request.Context(), businessID, importID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ConfirmSuggested accepts the import's suggestions at or above min_score
// (default 90) in one step.
func (h *ReconciliationHandler) ConfirmSuggested(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}

	var payload struct {
		MinScore *int   `json:"min_score"`
		Reason   string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}
	minScore := 90
	if payload.MinScore != nil {
		minScore = *payload.MinScore
	}

	result, err := h.service.ConfirmSuggestions(c.Request.Context(), businessID, importID, minScore, payload.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":              "bulk confirm completed",
		"transactions_updated": result.Confirmed,
		"result":               result,
	})
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	importID, ok := uuidParam(c, "importId")
	if !ok {
		return
	}

	status := models.TxStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	cursor, _ := strconv.Atoi(c.Query("cursor"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	page, err := h.service.ListTransactions(c.Request.Context(), businessID, importID, status, cursor, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReconciliationHandler) ListCandidates(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	candidates, err := h.service.ListCandidates(c.Request.Context(), businessID, txID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": candidates})
}

func (h *ReconciliationHandler) History(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), businessID, txID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

type reasonPayload struct {
	Reason string `json:"reason"`
}

// bindReason accepts an empty body.
func bindReason(c *gin.Context) (string, bool) {
	var payload reasonPayload
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return "", false
	}
	return payload.Reason, true
}

func (h *ReconciliationHandler) ConfirmTransaction(c *gin.Context) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var payload struct {
		CounterpartID string `json:"counterpart_id" binding:"required"`
		Reason        string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "counterpart_id required"})
		return
	}
	counterpartID, err := uuid.Parse(payload.CounterpartID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid counterpart_id"})
		return
	}

	tx, err := h.service.ConfirmMatch(c.Request.Context(), businessID, txID, counterpartID, payload.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction matched", "transaction": tx})
}

func (h *ReconciliationHandler) RejectTransaction(c *gin.Context) {
	h.simpleAction(c, "transaction ignored", h.service.RejectSuggestion)
}

func (h *ReconciliationHandler) UnmatchTransaction(c *gin.Context) {
	h.simpleAction(c, "transaction unmatched", h.service.Unmatch)
}

func (h *ReconciliationHandler) ReopenTransaction(c *gin.Context) {
	h.simpleAction(c, "transaction reopened", h.service.Reopen)
}

type actionFunc func(ctx context.Context, businessID, txID uuid.UUID, reason string) (*models.BankTransaction, error)

func (h *ReconciliationHandler) simpleAction(c *gin.Context, message string, action actionFunc) {
	businessID, ok := uuidParam(c, "businessId")
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	tx, err := action(c.Request.Context(), businessID, txID, reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "transaction": tx})
}
