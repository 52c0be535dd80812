package handler

import (
	"engagement-rewards/internal/adapter/http/dto"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the review queue and withdrawal finalization.
// Every route sits behind RequireRole(admin).
type AdminHandler struct {
	submissionSvc ports.SubmissionService
	withdrawalSvc ports.WithdrawalService
	reportingSvc  ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(submissionSvc ports.SubmissionService, withdrawalSvc ports.WithdrawalService, reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{submissionSvc: submissionSvc, withdrawalSvc: withdrawalSvc, reportingSvc: reportingSvc}
}

// ListSubmissions handles GET /api/v1/admin/submissions.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	params, ok := submissionFilters(c)
	if !ok {
		return
	}
	if params.UserID, ok = userFilter(c); !ok {
		return
	}

	subs, total, err := h.reportingSvc.ListSubmissions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, dto.ToSubmissionList(subs), total, params.Page, params.PageSize)
}

// ApproveSubmission handles POST /api/v1/admin/submissions/:id/approve.
func (h *AdminHandler) ApproveSubmission(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.submissionSvc.Approve(c.Request.Context(), id, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSubmissionResponse(sub))
}

// RejectSubmission handles POST /api/v1/admin/submissions/:id/reject.
func (h *AdminHandler) RejectSubmission(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	reason, ok := reviewReason(c)
	if !ok {
		return
	}

	sub, err := h.submissionSvc.Reject(c.Request.Context(), id, actorID, reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSubmissionResponse(sub))
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	params, ok := withdrawalFilters(c)
	if !ok {
		return
	}
	if params.UserID, ok = userFilter(c); !ok {
		return
	}

	ws, total, err := h.reportingSvc.ListWithdrawals(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, dto.ToWithdrawalList(ws), total, params.Page, params.PageSize)
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	w, err := h.withdrawalSvc.Approve(c.Request.Context(), id, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWithdrawalResponse(w))
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	reason, ok := reviewReason(c)
	if !ok {
		return
	}

	w, err := h.withdrawalSvc.Reject(c.Request.Context(), id, actorID, reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWithdrawalResponse(w))
}

// reviewReason reads the optional rejection note. An empty body is allowed.
func reviewReason(c *gin.Context) (string, bool) {
	var req dto.ReviewRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return "", false
		}
	}
	dto.SanitizeStruct(&req)
	return req.Reason, true
}
