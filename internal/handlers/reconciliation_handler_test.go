package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/matching"
	service "bank-reconciliation-backend/internal/services/reconciliation"
	"bank-reconciliation-backend/internal/worker"
)

type recordingScheduler struct {
	jobs []worker.Job
	err  error
}

func (s *recordingScheduler) Enqueue(_ context.Context, job worker.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func newTestRouter(t *testing.T, scheduler Scheduler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.BankImport{}, &models.BankTransaction{}, &models.Expense{}, &models.Invoice{}, &models.Payment{}, &models.MatchAuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewReconciliationService(db, repository.NewRepositories(db), matching.NewEngine(matching.DefaultConfig()), service.Options{}, log)
	h := NewReconciliationHandler(svc, scheduler, log, 1<<20)

	r := gin.New()
	biz := r.Group("/api/businesses/:businessId")
	biz.POST("/imports", h.Upload)
	biz.POST("/imports/preview", h.Preview)
	biz.GET("/imports/:importId", h.GetImport)
	biz.POST("/imports/:importId/confirm-suggested", h.ConfirmSuggested)
	biz.POST("/transactions/:id/confirm", h.ConfirmTransaction)
	biz.POST("/transactions/:id/reject", h.RejectTransaction)
	biz.POST("/expenses", h.CreateExpense)
	biz.POST("/invoices", h.CreateInvoice)
	biz.POST("/invoices/:invoiceId/payments", h.RecordPayment)
	return r
}

const validMapping = `{"skip_rows":1,"columns":[` +
	`{"source_column":0,"canonical_field":"date"},` +
	`{"source_column":1,"canonical_field":"description"},` +
	`{"source_column":2,"canonical_field":"debit"},` +
	`{"source_column":3,"canonical_field":"credit"}]}`

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUpload_SchedulesImport(t *testing.T) {
	scheduler := &recordingScheduler{}
	r := newTestRouter(t, scheduler)
	business := uuid.New()

	body, contentType := multipartBody(t, map[string]string{"mapping": validMapping, "source_bank": "equity"},
		"march.csv", "Date,Narrative,Debit,Credit\n01/03/2024,SAFARICOM,1500.00,\n")
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/businesses/%s/imports", business), body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status got=%d want=%d body=%s", w.Code, http.StatusAccepted, w.Body.String())
	}
	var resp struct {
		ImportID string `json:"import_id"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(models.ImportPending) {
		t.Fatalf("import status got=%s want=%s", resp.Status, models.ImportPending)
	}
	if len(scheduler.jobs) != 1 || scheduler.jobs[0].ImportID.String() != resp.ImportID || scheduler.jobs[0].BusinessID != business {
		t.Fatalf("scheduled jobs got=%+v", scheduler.jobs)
	}

	get := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/businesses/%s/imports/%s", business, resp.ImportID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	if w.Code != http.StatusOK {
		t.Fatalf("get import status got=%d want=%d", w.Code, http.StatusOK)
	}
}

func TestUpload_Rejections(t *testing.T) {
	business := uuid.New()
	cases := []struct {
		name     string
		path     string
		fields   map[string]string
		filename string
		sched    *recordingScheduler
		want     int
	}{
		{"bad business id", "/api/businesses/nope/imports", map[string]string{"mapping": validMapping}, "a.csv", &recordingScheduler{}, http.StatusBadRequest},
		{"missing mapping", fmt.Sprintf("/api/businesses/%s/imports", business), nil, "a.csv", &recordingScheduler{}, http.StatusBadRequest},
		{"unknown field", fmt.Sprintf("/api/businesses/%s/imports", business), map[string]string{"mapping": `{"columns":[{"source_column":0,"canonical_field":"memo"}]}`}, "a.csv", &recordingScheduler{}, http.StatusBadRequest},
		{"no amount column", fmt.Sprintf("/api/businesses/%s/imports", business), map[string]string{"mapping": `{"columns":[{"source_column":0,"canonical_field":"date"},{"source_column":1,"canonical_field":"description"}]}`}, "a.csv", &recordingScheduler{}, http.StatusBadRequest},
		{"missing file", fmt.Sprintf("/api/businesses/%s/imports", business), map[string]string{"mapping": validMapping}, "", &recordingScheduler{}, http.StatusBadRequest},
		{"queue full", fmt.Sprintf("/api/businesses/%s/imports", business), map[string]string{"mapping": validMapping}, "a.csv", &recordingScheduler{err: worker.ErrQueueFull}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		r := newTestRouter(t, tc.sched)
		body, contentType := multipartBody(t, tc.fields, tc.filename, "Date,Narrative,Debit,Credit\n")
		req := httptest.NewRequest(http.MethodPost, tc.path, body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status got=%d want=%d body=%s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestPreview(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{})
	body, contentType := multipartBody(t, nil, "march.csv",
		"Date,Narrative,Debit,Credit\n01/03/2024,A,1,\n02/03/2024,B,,2\n")
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/businesses/%s/imports/preview", uuid.New()), body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	var preview struct {
		Header    []string   `json:"header"`
		Sample    [][]string `json:"sample"`
		TotalRows int        `json:"total_rows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if preview.TotalRows != 2 || len(preview.Header) != 4 {
		t.Fatalf("preview got=%+v", preview)
	}
}

func TestConfirm_BadRequests(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{})
	base := fmt.Sprintf("/api/businesses/%s/transactions/%s", uuid.New(), uuid.New())

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"bad counterpart", `{"counterpart_id":"x"}`, http.StatusBadRequest},
		{"unknown transaction", fmt.Sprintf(`{"counterpart_id":"%s"}`, uuid.New()), http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, base+"/confirm", bytes.NewBufferString(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status got=%d want=%d body=%s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, base+"/reject", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("reject unknown: status got=%d want=%d", w.Code, http.StatusNotFound)
	}
}

func TestCounterpartEndpoints(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{})
	business := uuid.New()

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/businesses/%s%s", business, path), bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := post("/expenses", `{"vendor_name":"Safaricom","amount":"1500.00","expense_date":"2024-03-02"}`); w.Code != http.StatusCreated {
		t.Fatalf("create expense: status got=%d body=%s", w.Code, w.Body.String())
	}
	if w := post("/expenses", `{"vendor_name":"","amount":"1500.00","expense_date":"2024-03-02"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("create expense without vendor: status got=%d", w.Code)
	}

	w := post("/invoices", `{"contact_name":"John Doe","amount":2500,"due_date":"31-03-2024"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create invoice: status got=%d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Invoice models.Invoice `json:"invoice"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Invoice.InvoiceNumber == "" {
		t.Fatalf("invoice number should be generated")
	}

	if w := post(fmt.Sprintf("/invoices/%s/payments", created.Invoice.ID), `{"amount":"2500","payment_date":"2024-03-02"}`); w.Code != http.StatusCreated {
		t.Fatalf("record payment: status got=%d body=%s", w.Code, w.Body.String())
	}
	if w := post(fmt.Sprintf("/invoices/%s/payments", uuid.New()), `{"amount":"2500","payment_date":"2024-03-02"}`); w.Code != http.StatusNotFound {
		t.Fatalf("payment on unknown invoice: status got=%d", w.Code)
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{&service.InvalidTransitionError{From: models.StatusIgnored, Action: service.ActionConfirm}, http.StatusConflict},
		{service.ErrImportNotReady, http.StatusConflict},
		{&service.CandidateNotFoundError{CounterpartID: uuid.New(), Reason: "already reconciled"}, http.StatusUnprocessableEntity},
		{&service.ValidationError{Field: "amount", Message: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", worker.ErrQueueClosed), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, log, tc.err)
		if w.Code != tc.want {
			t.Fatalf("%v: status got=%d want=%d", tc.err, w.Code, tc.want)
		}
	}
}

func TestConfirmSuggested_Requests(t *testing.T) {
	r := newTestRouter(t, &recordingScheduler{})
	path := fmt.Sprintf("/api/businesses/%s/imports/%s/confirm-suggested", uuid.New(), uuid.New())

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{"min_score":"high"}`, http.StatusBadRequest},
		{"score out of range", `{"min_score":150}`, http.StatusBadRequest},
		{"unknown import", `{"min_score":95}`, http.StatusNotFound},
		{"default score", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status got=%d want=%d body=%s", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}
