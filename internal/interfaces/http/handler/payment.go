package handler

import (
	"errors"
	"io"
	"time"

	billingapp "github.com/condo/backend/internal/application/billing"
	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared/valueobject"
	"github.com/condo/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentHandler handles payment reporting and verification endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *billingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *billingapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ReportPaymentRequest represents a payment reported by a resident
// @Description Request body for reporting a payment
type ReportPaymentRequest struct {
	UnitID          string  `json:"unit_id" binding:"required,uuid" example:"7f9c24e5-3f6a-4df0-9d6a-1c2b3d4e5f60"`
	Amount          float64 `json:"amount" binding:"required,gt=0" example:"120.50"`
	Currency        string  `json:"currency" binding:"omitempty,currency" example:"USD"`
	Method          string  `json:"method" binding:"required,oneof=bank_transfer cash mobile_payment zelle other" example:"bank_transfer"`
	ReferenceNumber string  `json:"reference_number" binding:"required,min=1,max=100" example:"TRF-20260815-0042"`
	PaymentDate     string  `json:"payment_date" binding:"required" example:"2026-08-15"`
}

// VerifyPaymentRequest represents an administrator's verification decision
// @Description Request body for verifying a payment
type VerifyPaymentRequest struct {
	Notes string `json:"notes" binding:"max=500" example:"Matched against bank statement"`
}

// RejectPaymentRequest represents an administrator's rejection decision
// @Description Request body for rejecting a payment
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Reference not found in bank statement"`
}

// RefundPaymentRequest represents a refund of a completed payment
// @Description Request body for refunding a payment
type RefundPaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Duplicate transfer"`
}

// Report godoc
// @ID           reportPayment
// @Summary      Report a payment
// @Description  Register a payment reported by a resident. The payment stays in pending_verification until an administrator reviews it; no quota is touched before that.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Reporting user ID" format(uuid)
// @Param        request body ReportPaymentRequest true "Payment report request"
// @Success      201 {object} APIResponse[billing.Payment]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments [post]
func (h *PaymentHandler) Report(c *gin.Context) {
	reportedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing or invalid user identity")
		return
	}

	var req ReportPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}

	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		h.BadRequest(c, "Invalid payment date, expected YYYY-MM-DD")
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

	payment, err := h.paymentService.ReportPayment(c.Request.Context(), billingapp.ReportPaymentRequest{
		UnitID:          unitID,
		ReportedBy:      reportedBy,
		Amount:          amount,
		Method:          billing.PaymentMethod(req.Method),
		ReferenceNumber: req.ReferenceNumber,
		PaymentDate:     paymentDate,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, payment)
}

// Verify godoc
// @ID           verifyPayment
// @Summary      Verify a payment
// @Description  Approve a reported payment and allocate it to the unit's unpaid quotas, oldest due date first. A remainder smaller than the next quota is parked for manual resolution.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Verifying administrator ID" format(uuid)
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body VerifyPaymentRequest true "Verification request"
// @Success      200 {object} APIResponse[billingapp.VerifyPaymentResult]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments/{id}/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	verifiedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing or invalid user identity")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	// Notes are optional, so an empty body is accepted
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), paymentID, verifiedBy, req.Notes)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	logger.L(c.Request.Context()).Info("Payment verified",
		zap.String("payment_id", paymentID.String()),
		zap.String("allocated", result.AllocatedAmount),
		zap.String("pending", result.PendingAmount),
		zap.Int("quotas_fully_paid", result.QuotasFullyPaid),
	)

	h.Success(c, result)
}

// Reject godoc
// @ID           rejectPayment
// @Summary      Reject a payment
// @Description  Reject a reported payment. No quota is mutated; the rejection reason is kept for the resident.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Rejecting administrator ID" format(uuid)
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body RejectPaymentRequest true "Rejection request"
// @Success      200 {object} APIResponse[billing.Payment]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	rejectedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing or invalid user identity")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.RejectPayment(c.Request.Context(), paymentID, rejectedBy, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, payment)
}

// Refund godoc
// @ID           refundPayment
// @Summary      Refund a payment
// @Description  Refund a completed payment and reverse its quota applications.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Refunding administrator ID" format(uuid)
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body RefundPaymentRequest true "Refund request"
// @Success      200 {object} APIResponse[billingapp.RefundPaymentResult]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	refundedBy, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing or invalid user identity")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.RefundPayment(c.Request.Context(), paymentID, refundedBy, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	logger.L(c.Request.Context()).Info("Payment refunded",
		zap.String("payment_id", paymentID.String()),
		zap.Int("applications_reversed", result.ReversedApplications),
	)

	h.Success(c, result)
}

// GetByID godoc
// @ID           getPaymentById
// @Summary      Get payment by ID
// @Description  Retrieve a payment by its ID
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[billing.Payment]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments/{id} [get]
func (h *PaymentHandler) GetByID(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, payment)
}

// List godoc
// @ID           listPayments
// @Summary      List payments
// @Description  Retrieve a paginated list of payments. Filters by status, unit, reporter or payment date range; unfiltered it returns the verification queue.
// @Tags         payments
// @Produce      json
// @Param        status query string false "Payment status" Enums(pending_verification, completed, rejected, refunded)
// @Param        unit_id query string false "Unit ID" format(uuid)
// @Param        reported_by query string false "Reporting user ID" format(uuid)
// @Param        from query string false "Payment date range start (YYYY-MM-DD)"
// @Param        to query string false "Payment date range end (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]billing.Payment]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /billing/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter, err := bindListFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	switch {
	case c.Query("unit_id") != "":
		unitID, err := uuid.Parse(c.Query("unit_id"))
		if err != nil {
			h.BadRequest(c, "Invalid unit ID format")
			return
		}
		result, err := h.paymentService.ListByUnit(ctx, unitID, filter)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)

	case c.Query("reported_by") != "":
		reporterID, err := uuid.Parse(c.Query("reported_by"))
		if err != nil {
			h.BadRequest(c, "Invalid reporter ID format")
			return
		}
		result, err := h.paymentService.ListByReporter(ctx, reporterID, filter)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)

	case c.Query("from") != "" || c.Query("to") != "":
		from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		result, err := h.paymentService.ListByDateRange(ctx, from, to, filter)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)

	case c.Query("status") != "":
		status := billing.PaymentStatus(c.Query("status"))
		if !status.IsValid() {
			h.BadRequest(c, "Invalid payment status")
			return
		}
		result, err := h.paymentService.ListByStatus(ctx, status, filter)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)

	default:
		result, err := h.paymentService.ListPendingVerification(ctx, filter)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
	}
}

// parseDateRange parses an inclusive payment date range. Open ends fall
// back to the epoch and to the far future respectively.
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, err
		}
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
