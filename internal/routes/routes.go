package routes

import (
	"github.com/gin-gonic/gin"

	handler "bank-reconciliation-backend/internal/handlers"
)

func RegisterRoutes(r *gin.Engine, reconHandler *handler.ReconciliationHandler) {
	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	biz := api.Group("/businesses/:businessId")

	// Statement imports
	imports := biz.Group("/imports")
	imports.POST("", reconHandler.Upload)
	imports.POST("/preview", reconHandler.Preview)
	imports.GET("/:importId", reconHandler.GetImport)
	imports.GET("/:importId/stats", reconHandler.GetImportStats)
	imports.POST("/:importId/cancel", reconHandler.CancelImport)
	imports.POST("/:importId/rerun", reconHandler.RerunMatching)
	imports.POST("/:importId/confirm-suggested", reconHandler.ConfirmSuggested)
	imports.GET("/:importId/transactions", reconHandler.ListTransactions)

	// Transaction-level routes
	tx := biz.Group("/transactions")
	tx.GET("/:id/candidates", reconHandler.ListCandidates)
	tx.GET("/:id/history", reconHandler.History)
	tx.POST("/:id/confirm", reconHandler.ConfirmTransaction)
	tx.POST("/:id/reject", reconHandler.RejectTransaction)
	tx.POST("/:id/unmatch", reconHandler.UnmatchTransaction)
	tx.POST("/:id/reopen", reconHandler.ReopenTransaction)

	// Counterparts
	biz.POST("/expenses", reconHandler.CreateExpense)
	invoices := biz.Group("/invoices")
	{
		invoices.POST("", reconHandler.CreateInvoice)
		invoices.POST("/:invoiceId/payments", reconHandler.RecordPayment)
	}
}
