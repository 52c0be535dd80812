package handler

import (
	"errors"
	"net/http"
	"strconv"

	"engagement-rewards/internal/adapter/http/dto"
	"engagement-rewards/internal/adapter/http/middleware"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// callerID returns the authenticated user or writes a 401.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into dst or writes the error. A body cut off by
// MaxBodySize is reported as GEN_003 rather than a validation failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, apperror.ErrPayloadTooLarge(tooLarge.Limit))
		return false
	}
	response.Error(c, apperror.Validation(err.Error()))
	return false
}

// pathID binds the :id path parameter or writes a 400.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid id"))
		return uuid.Nil, false
	}
	return uuid.MustParse(uri.ID), true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// userFilter parses an optional ?user_id= for admin listings.
func userFilter(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user_id"))
		return nil, false
	}
	return &id, true
}
