package handler

import (
	billingapp "github.com/condo/backend/internal/application/billing"
	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FormulaHandler handles quota formula API endpoints
type FormulaHandler struct {
	BaseHandler
	formulaService *billingapp.FormulaService
	chargeService  *billingapp.ChargeService
}

// NewFormulaHandler creates a new FormulaHandler
func NewFormulaHandler(formulaService *billingapp.FormulaService, chargeService *billingapp.ChargeService) *FormulaHandler {
	return &FormulaHandler{
		formulaService: formulaService,
		chargeService:  chargeService,
	}
}

// FormulaDefinitionRequest represents the typed payload of a formula
// @Description Formula definition. Exactly the field matching type must be set.
type FormulaDefinitionRequest struct {
	Type           string             `json:"type" binding:"required,oneof=fixed expression per_unit" example:"expression"`
	FixedAmount    *float64           `json:"fixed_amount" example:"50.00"`
	Expression     string             `json:"expression" example:"aliquot * total_expenses"`
	PerUnitAmounts map[string]float64 `json:"per_unit_amounts"`
}

func (r FormulaDefinitionRequest) toDomain() billing.FormulaDefinition {
	def := billing.FormulaDefinition{
		Type:       billing.FormulaType(r.Type),
		Expression: r.Expression,
	}
	if r.FixedAmount != nil {
		def.FixedAmount = toDecimalPtr(*r.FixedAmount)
	}
	if r.PerUnitAmounts != nil {
		def.PerUnitAmounts = toDecimalMap(r.PerUnitAmounts)
	}
	return def
}

// CreateFormulaRequest represents a request to create a quota formula
// @Description Request body for creating a quota formula
type CreateFormulaRequest struct {
	Name        string                   `json:"name" binding:"required,min=1,max=200" example:"Monthly maintenance"`
	Description string                   `json:"description" binding:"max=500" example:"Aliquot share of common expenses"`
	Definition  FormulaDefinitionRequest `json:"definition" binding:"required"`
	Variables   map[string]float64       `json:"variables"`
	Currency    string                   `json:"currency" binding:"omitempty,currency" example:"USD"`
}

// UpdateFormulaRequest represents a request to update a quota formula
// @Description Request body for updating a quota formula
type UpdateFormulaRequest struct {
	Name        *string                   `json:"name" binding:"omitempty,min=1,max=200" example:"Monthly maintenance 2026"`
	Description *string                   `json:"description" binding:"omitempty,max=500" example:"Updated expense split"`
	Definition  *FormulaDefinitionRequest `json:"definition"`
	Variables   map[string]float64        `json:"variables"`
}

// CalculateChargeRequest represents a request to evaluate a formula for a unit
// @Description Request body for a dry-run charge calculation
type CalculateChargeRequest struct {
	UnitID    string             `json:"unit_id" binding:"required,uuid" example:"7f9c24e5-3f6a-4df0-9d6a-1c2b3d4e5f60"`
	Variables map[string]float64 `json:"variables"`
}

// Create godoc
// @ID           createFormula
// @Summary      Create a quota formula
// @Description  Create a new quota formula. Expression definitions are validated before saving.
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        request body CreateFormulaRequest true "Formula creation request"
// @Success      201 {object} APIResponse[billing.QuotaFormula]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas [post]
func (h *FormulaHandler) Create(c *gin.Context) {
	var req CreateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	formula, err := h.formulaService.CreateFormula(c.Request.Context(), billingapp.CreateFormulaRequest{
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition.toDomain(),
		Variables:   toDecimalMap(req.Variables),
		Currency:    req.Currency,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, formula)
}

// GetByID godoc
// @ID           getFormulaById
// @Summary      Get formula by ID
// @Description  Retrieve a quota formula by its ID
// @Tags         formulas
// @Produce      json
// @Param        id path string true "Formula ID" format(uuid)
// @Success      200 {object} APIResponse[billing.QuotaFormula]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas/{id} [get]
func (h *FormulaHandler) GetByID(c *gin.Context) {
	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	formula, err := h.formulaService.GetFormula(c.Request.Context(), formulaID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formula)
}

// List godoc
// @ID           listFormulas
// @Summary      List quota formulas
// @Description  Retrieve a paginated list of quota formulas
// @Tags         formulas
// @Produce      json
// @Param        search query string false "Search term (name, description)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Order by field" default(created_at)
// @Param        order_dir query string false "Order direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]billing.QuotaFormula]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas [get]
func (h *FormulaHandler) List(c *gin.Context) {
	filter, err := bindListFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.formulaService.ListFormulas(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Update godoc
// @ID           updateFormula
// @Summary      Update a quota formula
// @Description  Apply a partial update to a quota formula. Changing the definition re-validates it.
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        id path string true "Formula ID" format(uuid)
// @Param        request body UpdateFormulaRequest true "Formula update request"
// @Success      200 {object} APIResponse[billing.QuotaFormula]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas/{id} [put]
func (h *FormulaHandler) Update(c *gin.Context) {
	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	var req UpdateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := billingapp.UpdateFormulaRequest{
		Name:        req.Name,
		Description: req.Description,
		Variables:   toDecimalMap(req.Variables),
	}
	if req.Definition != nil {
		def := req.Definition.toDomain()
		appReq.Definition = &def
	}

	formula, err := h.formulaService.UpdateFormula(c.Request.Context(), formulaID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formula)
}

// Deactivate godoc
// @ID           deactivateFormula
// @Summary      Deactivate a quota formula
// @Description  Deactivate a formula so it can no longer be used for billing runs
// @Tags         formulas
// @Produce      json
// @Param        id path string true "Formula ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas/{id}/deactivate [post]
func (h *FormulaHandler) Deactivate(c *gin.Context) {
	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	if err := h.formulaService.DeactivateFormula(c.Request.Context(), formulaID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Calculate godoc
// @ID           calculateCharge
// @Summary      Calculate a charge
// @Description  Evaluate the formula against a unit and return the amount with its breakdown. Nothing is persisted.
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        id path string true "Formula ID" format(uuid)
// @Param        request body CalculateChargeRequest true "Charge calculation request"
// @Success      200 {object} APIResponse[billing.ChargeResult]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/formulas/{id}/calculate [post]
func (h *FormulaHandler) Calculate(c *gin.Context) {
	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	var req CalculateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	result, err := h.chargeService.CalculateCharge(c.Request.Context(), formulaID, unitID, toDecimalMap(req.Variables))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// bindListFilter binds the common pagination query parameters
func bindListFilter(c *gin.Context) (shared.Filter, error) {
	var req struct {
		Page     int    `form:"page" binding:"omitempty,min=1"`
		PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
		OrderBy  string `form:"order_by"`
		OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		return shared.Filter{}, err
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search
	return filter, nil
}
