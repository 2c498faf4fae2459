package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	handler "bank-reconciliation-backend/internal/handlers"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, handler.NewReconciliationHandler(nil, nil, nil, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status got=%d want=%d", w.Code, http.StatusOK)
	}

	want := map[string]bool{
		"POST /api/businesses/:businessId/imports":                             true,
		"POST /api/businesses/:businessId/imports/:importId/confirm-suggested": true,
		"GET /api/businesses/:businessId/imports/:importId/transactions":       true,
		"GET /api/businesses/:businessId/transactions/:id/candidates":          true,
		"GET /api/businesses/:businessId/transactions/:id/history":             true,
		"POST /api/businesses/:businessId/transactions/:id/confirm":            true,
		"POST /api/businesses/:businessId/transactions/:id/reopen":             true,
		"POST /api/businesses/:businessId/invoices/:invoiceId/payments":        true,
	}
	for _, route := range r.Routes() {
		delete(want, route.Method+" "+route.Path)
	}
	if len(want) != 0 {
		t.Fatalf("missing routes: %v", want)
	}

	// Malformed ids are rejected before the service is reached.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/businesses/not-a-uuid/imports/x", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", w.Code, http.StatusBadRequest)
	}
}
