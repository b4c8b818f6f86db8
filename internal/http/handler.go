package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/jobpay/internal/http/middleware"
	"github.com/nurpe/jobpay/internal/model"
	"github.com/nurpe/jobpay/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type ContractService interface {
	GetContract(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Contract, error)
	ListContracts(ctx context.Context, principal model.Principal, statuses []model.ContractStatus) ([]model.Contract, error)
	ListUnpaidJobs(ctx context.Context, principal model.Principal) ([]model.Job, error)
	GenerateReceipt(ctx context.Context, principal model.Principal, jobID uuid.UUID) (*service.GenerateReceiptResult, error)
}

type PaymentService interface {
	PayJob(ctx context.Context, input service.PayJobInput) (*model.Payment, error)
	Deposit(ctx context.Context, input service.DepositInput) (*model.DepositResult, error)
}

type ReportService interface {
	BestProfession(ctx context.Context, input service.ReportInput) ([]model.ProfessionTotal, error)
	BestClients(ctx context.Context, input service.ReportInput) ([]model.ClientTotal, error)
	Export(ctx context.Context, mode model.ReportMode, input service.ReportInput) (*service.GenerateReportResult, error)
}

type Handler struct {
	contracts ContractService
	payments  PaymentService
	reports   ReportService
	log       zerolog.Logger
}

func NewHandler(contracts ContractService, payments PaymentService, reports ReportService, log zerolog.Logger) *Handler {
	return &Handler{
		contracts: contracts,
		payments:  payments,
		reports:   reports,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/contracts/:id", h.getContract)
	protected.GET("/contracts", h.listContracts)

	protected.GET("/jobs/unpaid", h.listUnpaidJobs)
	protected.POST("/jobs/:job_id/pay", h.payJob)
	protected.GET("/jobs/:job_id/receipt", h.jobReceipt)

	protected.POST("/balances/deposit/:userId", h.deposit)

	admin := protected.Group("/admin")
	admin.GET("/best-profession", h.bestProfession)
	admin.GET("/best-profession/export", h.exportReport(model.ReportModeProfession))
	admin.GET("/best-clients", h.bestClients)
	admin.GET("/best-clients/export", h.exportReport(model.ReportModeClients))
}

func (h *Handler) getContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err, "get contract failed")
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) listContracts(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var statuses []model.ContractStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, model.ContractStatus(strings.ToLower(part)))
			}
		}
	}

	contracts, err := h.contracts.ListContracts(c.Request.Context(), principal, statuses)
	if err != nil {
		h.handleError(c, err, "list contracts failed")
		return
	}
	c.JSON(http.StatusOK, contracts)
}

func (h *Handler) listUnpaidJobs(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobs, err := h.contracts.ListUnpaidJobs(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err, "list unpaid jobs failed")
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) payJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(strings.TrimSpace(c.Param("job_id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_id"})
		return
	}

	payment, err := h.payments.PayJob(c.Request.Context(), service.PayJobInput{
		JobID:     jobID,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err, "pay job failed")
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) jobReceipt(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(strings.TrimSpace(c.Param("job_id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_id"})
		return
	}

	result, err := h.contracts.GenerateReceipt(c.Request.Context(), principal, jobID)
	if err != nil {
		h.handleError(c, err, "generate receipt failed")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypePDF, result.Content)
}

type depositRequest struct {
	Deposit *decimal.Decimal `json:"deposit" binding:"required"`
}

func (h *Handler) deposit(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	targetID, err := uuid.Parse(strings.TrimSpace(c.Param("userId")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deposit amount is required"})
		return
	}

	result, err := h.payments.Deposit(c.Request.Context(), service.DepositInput{
		TargetID:  targetID,
		Amount:    *req.Deposit,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err, "deposit failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) bestProfession(c *gin.Context) {
	input, ok := h.reportInput(c)
	if !ok {
		return
	}

	rows, err := h.reports.BestProfession(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err, "best profession report failed")
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) bestClients(c *gin.Context) {
	input, ok := h.reportInput(c)
	if !ok {
		return
	}

	rows, err := h.reports.BestClients(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err, "best clients report failed")
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) exportReport(mode model.ReportMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := h.reportInput(c)
		if !ok {
			return
		}

		result, err := h.reports.Export(c.Request.Context(), mode, input)
		if err != nil {
			h.handleError(c, err, "export report failed")
			return
		}

		c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
		c.Data(http.StatusOK, contentTypeXLSX, result.Content)
	}
}

// reportInput reads the window and limit query parameters. It writes the
// error response itself and reports false when the request is unusable.
func (h *Handler) reportInput(c *gin.Context) (service.ReportInput, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return service.ReportInput{}, false
	}

	start, _, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return service.ReportInput{}, false
	}

	end, dateOnly, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return service.ReportInput{}, false
	}
	if dateOnly {
		end = endOfDay(end)
	}

	input := service.ReportInput{
		Window:    model.ReportWindow{Start: start, End: end},
		Principal: principal,
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return service.ReportInput{}, false
		}
		input.Limit = &limit
	}
	return input, true
}

func (h *Handler) handleError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps or bare dates. The second result
// reports whether the value was a bare date.
func parseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, service.ErrInvalidInput
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), layout == "2006-01-02", nil
		}
	}
	return time.Time{}, false, service.ErrInvalidInput
}

func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Microsecond)
}
