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

// SubmissionHandler handles a user's submissions and video rewards.
type SubmissionHandler struct {
	submissionSvc ports.SubmissionService
	reportingSvc  ports.ReportingService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionSvc ports.SubmissionService, reportingSvc ports.ReportingService) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc, reportingSvc: reportingSvc}
}

// Create handles POST /api/v1/submissions.
func (h *SubmissionHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.CreateSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	sub, err := h.submissionSvc.CreateSubmission(c.Request.Context(), ports.CreateSubmissionRequest{
		UserID:        userID,
		Platform:      domain.Platform(req.Platform),
		ScreenshotURL: req.ScreenshotURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToSubmissionResponse(sub))
}

// CompleteVideo handles POST /api/v1/videos/:video_id/complete.
func (h *SubmissionHandler) CompleteVideo(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var uri dto.VideoURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid video_id"))
		return
	}
	var req dto.VideoCompletionRequest
	if !bindJSON(c, &req) {
		return
	}

	var amount int64
	if req.Amount != "" {
		v, err := money.Parse(req.Amount)
		if err != nil {
			response.Error(c, apperror.Validation("invalid amount"))
			return
		}
		amount = v
	}

	sub, err := h.submissionSvc.CompleteVideo(c.Request.Context(), ports.VideoCompletionRequest{
		UserID:          userID,
		VideoID:         uri.VideoID,
		WatchedSeconds:  req.WatchedSeconds,
		DurationSeconds: req.DurationSeconds,
		Amount:          amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToSubmissionResponse(sub))
}

// List handles GET /api/v1/submissions for the caller's own history.
func (h *SubmissionHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	params, ok := submissionFilters(c)
	if !ok {
		return
	}
	params.UserID = &userID

	subs, total, err := h.reportingSvc.ListSubmissions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, dto.ToSubmissionList(subs), total, params.Page, params.PageSize)
}

// submissionFilters parses ?platform=, ?status= and paging.
func submissionFilters(c *gin.Context) (ports.SubmissionListParams, bool) {
	page, pageSize := pagination(c)
	params := ports.SubmissionListParams{Page: page, PageSize: pageSize}

	if p := c.Query("platform"); p != "" {
		platform := domain.Platform(p)
		if !platform.Valid() {
			response.Error(c, apperror.Validation("invalid platform filter"))
			return params, false
		}
		params.Platform = &platform
	}
	if s := c.Query("status"); s != "" {
		status := domain.SubmissionStatus(s)
		switch status {
		case domain.SubmissionStatusPending, domain.SubmissionStatusApproved, domain.SubmissionStatusRejected:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("invalid status filter"))
			return params, false
		}
	}
	return params, true
}
