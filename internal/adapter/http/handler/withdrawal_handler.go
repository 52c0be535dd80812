package handler

import (
	"engagement-rewards/internal/adapter/http/dto"
	"engagement-rewards/internal/core/domain"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/money"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry a withdrawal request safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// WithdrawalHandler handles a user's withdrawal requests.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
	reportingSvc  ports.ReportingService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService, reportingSvc ports.ReportingService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc, reportingSvc: reportingSvc}
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := money.Parse(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount"))
		return
	}
	idempKey := c.GetHeader(HeaderIdempotencyKey)
	if len(idempKey) > 128 {
		response.Error(c, apperror.Validation("Idempotency-Key too long"))
		return
	}

	w, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalRequest{
		UserID: userID,
		Amount: amount,
		Bank: domain.BankDetails{
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			BankName:      req.BankName,
		},
		IdempotencyKey: idempKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToWithdrawalResponse(w))
}

// List handles GET /api/v1/withdrawals for the caller's own history.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	params, ok := withdrawalFilters(c)
	if !ok {
		return
	}
	params.UserID = &userID

	ws, total, err := h.reportingSvc.ListWithdrawals(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, dto.ToWithdrawalList(ws), total, params.Page, params.PageSize)
}

func withdrawalFilters(c *gin.Context) (ports.WithdrawalListParams, bool) {
	page, pageSize := pagination(c)
	params := ports.WithdrawalListParams{Page: page, PageSize: pageSize}

	if s := c.Query("status"); s != "" {
		status := domain.WithdrawalStatus(s)
		switch status {
		case domain.WithdrawalStatusPending, domain.WithdrawalStatusCompleted, domain.WithdrawalStatusFailed:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("invalid status filter"))
			return params, false
		}
	}
	return params, true
}
