package handler

import (
	"engagement-rewards/internal/adapter/http/dto"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// EarningsHandler serves the caller's balance.
type EarningsHandler struct {
	reportingSvc ports.ReportingService
}

// NewEarningsHandler creates a new EarningsHandler.
func NewEarningsHandler(reportingSvc ports.ReportingService) *EarningsHandler {
	return &EarningsHandler{reportingSvc: reportingSvc}
}

// Get handles GET /api/v1/earnings.
func (h *EarningsHandler) Get(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	acct, err := h.reportingSvc.GetEarnings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToEarningsResponse(acct))
}
