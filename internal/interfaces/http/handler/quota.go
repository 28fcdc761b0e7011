package handler

import (
	"time"

	billingapp "github.com/condo/backend/internal/application/billing"
	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared/valueobject"
	"github.com/condo/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuotaHandler handles quota lifecycle and pending allocation endpoints
type QuotaHandler struct {
	BaseHandler
	quotaService *billingapp.QuotaService
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quotaService *billingapp.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// GenerateQuotasRequest represents a monthly billing run
// @Description Request body for generating the quotas of one billing period
type GenerateQuotasRequest struct {
	FormulaID   string `json:"formula_id" binding:"required,uuid" example:"b1a7c7de-88e1-4f10-bf2c-0d9e8a541c7e"`
	Description string `json:"description" binding:"max=500" example:"August 2026 maintenance"`
	PeriodYear  int    `json:"period_year" binding:"required,min=2000,max=2100" example:"2026"`
	PeriodMonth int    `json:"period_month" binding:"required,min=1,max=12" example:"8"`
	DueDate     string `json:"due_date" binding:"required" example:"2026-08-31"`
}

// AccrueInterestRequest represents a late interest charge on a quota
// @Description Request body for accruing interest on an overdue quota
type AccrueInterestRequest struct {
	Amount   float64 `json:"amount" binding:"required,gt=0" example:"5.25"`
	Currency string  `json:"currency" binding:"omitempty,currency" example:"USD"`
}

// MarkOverdueRequest represents an overdue sweep trigger
// @Description Request body for sweeping unpaid quotas past their due date
type MarkOverdueRequest struct {
	AsOf string `json:"as_of" binding:"omitempty" example:"2026-09-01"`
}

// ResolvePendingAllocationRequest represents the settlement of a parked remainder
// @Description Request body for resolving a pending allocation
type ResolvePendingAllocationRequest struct {
	Resolution string  `json:"resolution" binding:"required,oneof=applied_to_quota credited returned" example:"applied_to_quota"`
	QuotaID    *string `json:"quota_id" binding:"omitempty,uuid" example:"3c9d1f4a-5b6e-4a70-8c1d-2e3f4a5b6c7d"`
	Notes      string  `json:"notes" binding:"max=500" example:"Applied to September quota"`
}

// Generate godoc
// @ID           generateQuotas
// @Summary      Generate monthly quotas
// @Description  Evaluate a formula against every active unit and create one quota per unit for the period. Units already billed for the period are skipped.
// @Tags         quotas
// @Accept       json
// @Produce      json
// @Param        request body GenerateQuotasRequest true "Billing run request"
// @Success      201 {object} APIResponse[billingapp.GenerateQuotasResult]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/quotas/generate [post]
func (h *QuotaHandler) Generate(c *gin.Context) {
	var req GenerateQuotasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	formulaID, err := uuid.Parse(req.FormulaID)
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due date, expected YYYY-MM-DD")
		return
	}

	result, err := h.quotaService.GenerateMonthlyQuotas(c.Request.Context(), billingapp.GenerateQuotasRequest{
		FormulaID:   formulaID,
		Description: req.Description,
		PeriodYear:  req.PeriodYear,
		PeriodMonth: req.PeriodMonth,
		DueDate:     dueDate,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	logger.L(c.Request.Context()).Info("Quota generation run completed",
		zap.Int("quotas_created", result.QuotasCreated),
		zap.Int("units_skipped", len(result.Skipped)),
		zap.String("total_billed", result.TotalBilled),
	)

	h.Created(c, result)
}

// GetByID godoc
// @ID           getQuotaById
// @Summary      Get quota by ID
// @Description  Retrieve a quota by its ID
// @Tags         quotas
// @Produce      json
// @Param        id path string true "Quota ID" format(uuid)
// @Success      200 {object} APIResponse[billing.Quota]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/quotas/{id} [get]
func (h *QuotaHandler) GetByID(c *gin.Context) {
	quotaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quota ID format")
		return
	}

	quota, err := h.quotaService.GetQuota(c.Request.Context(), quotaID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, quota)
}

// ListByUnit godoc
// @ID           listUnitQuotas
// @Summary      List a unit's quotas
// @Description  Retrieve a paginated list of the quotas billed to one unit
// @Tags         quotas
// @Produce      json
// @Param        unit_id path string true "Unit ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Order by field" default(created_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]billing.Quota]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/units/{unit_id}/quotas [get]
func (h *QuotaHandler) ListByUnit(c *gin.Context) {
	unitID, err := uuid.Parse(c.Param("unit_id"))
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	filter, err := bindListFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.quotaService.ListUnitQuotas(c.Request.Context(), unitID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// MarkOverdue godoc
// @ID           markOverdueQuotas
// @Summary      Sweep overdue quotas
// @Description  Mark every unpaid quota whose due date has passed as overdue. Defaults to today when as_of is omitted.
// @Tags         quotas
// @Accept       json
// @Produce      json
// @Param        request body MarkOverdueRequest false "Overdue sweep request"
// @Success      200 {object} APIResponse[CountData]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/quotas/mark-overdue [post]
func (h *QuotaHandler) MarkOverdue(c *gin.Context) {
	var req MarkOverdueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			h.BadRequest(c, "Invalid as_of date, expected YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	count, err := h.quotaService.MarkOverdueQuotas(c.Request.Context(), asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, CountData{Count: int64(count)})
}

// AccrueInterest godoc
// @ID           accrueQuotaInterest
// @Summary      Accrue interest on a quota
// @Description  Add a late interest amount to an open quota. The quota's balance grows by the same amount.
// @Tags         quotas
// @Accept       json
// @Produce      json
// @Param        id path string true "Quota ID" format(uuid)
// @Param        request body AccrueInterestRequest true "Interest accrual request"
// @Success      200 {object} APIResponse[billing.Quota]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/quotas/{id}/interest [post]
func (h *QuotaHandler) AccrueInterest(c *gin.Context) {
	quotaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid quota ID format")
		return
	}

	var req AccrueInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	currency := valueobject.DefaultCurrency
	if req.Currency != "" {
		currency = valueobject.Currency(req.Currency)
	}
	amount, err := valueobject.NewMoneyFromFloat(req.Amount, currency)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quota, err := h.quotaService.AccrueInterest(c.Request.Context(), billingapp.AccrueInterestRequest{
		QuotaID: quotaID,
		Amount:  amount,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, quota)
}

// ListPendingAllocations godoc
// @ID           listPendingAllocations
// @Summary      List a unit's pending allocations
// @Description  Retrieve the unresolved payment remainders parked for a unit
// @Tags         quotas
// @Produce      json
// @Param        unit_id path string true "Unit ID" format(uuid)
// @Success      200 {object} APIResponse[[]billing.PaymentPendingAllocation]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/units/{unit_id}/pending-allocations [get]
func (h *QuotaHandler) ListPendingAllocations(c *gin.Context) {
	unitID, err := uuid.Parse(c.Param("unit_id"))
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	allocations, err := h.quotaService.ListPendingAllocationsByUnit(c.Request.Context(), unitID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, allocations)
}

// ResolvePendingAllocation godoc
// @ID           resolvePendingAllocation
// @Summary      Resolve a pending allocation
// @Description  Settle a parked payment remainder by applying it to a quota, keeping it as owner credit, or returning it. Applying to a quota requires quota_id.
// @Tags         quotas
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Resolving administrator ID" format(uuid)
// @Param        id path string true "Pending allocation ID" format(uuid)
// @Param        request body ResolvePendingAllocationRequest true "Resolution request"
// @Success      200 {object} APIResponse[billing.PaymentPendingAllocation]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/pending-allocations/{id}/resolve [post]
func (h *QuotaHandler) ResolvePendingAllocation(c *gin.Context) {
	resolvedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing or invalid user identity")
		return
	}

	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid pending allocation ID format")
		return
	}

	var req ResolvePendingAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := billingapp.ResolvePendingAllocationRequest{
		PendingAllocationID: allocationID,
		Resolution:          billing.PendingAllocationResolution(req.Resolution),
		ResolvedBy:          resolvedBy,
		Notes:               req.Notes,
	}
	if req.QuotaID != nil {
		quotaID, err := uuid.Parse(*req.QuotaID)
		if err != nil {
			h.BadRequest(c, "Invalid quota ID format")
			return
		}
		appReq.QuotaID = &quotaID
	}

	allocation, err := h.quotaService.ResolvePendingAllocation(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, allocation)
}
