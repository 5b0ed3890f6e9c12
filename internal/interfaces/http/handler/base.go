package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/erp/stockflow/internal/infrastructure/backend"
	"github.com/erp/stockflow/internal/infrastructure/logger"
	"github.com/erp/stockflow/internal/interfaces/http/dto"
	"github.com/erp/stockflow/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError reports a request body that failed to decode or validate
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON for this endpoint")
	default:
		middleware.HandleValidationError(c, err)
	}
}

// EditRejected sends a 422 carrying the rejected EditResult, so the client can show the
// warning next to the line and keep the previous value
func (h *BaseHandler) EditRejected(c *gin.Context, result *stock.EditResult) {
	code := dto.NormalizeErrorCode(string(result.Outcome))
	message := result.Warning
	if message == "" {
		message = "Edit rejected"
	}
	c.JSON(dto.GetHTTPStatus(code), dto.NewRejectionResponse(code, message, getRequestID(c), result))
}

// HandleError maps service errors to HTTP responses.
//
//	*stock.ValidationError   -> 422 with the rejection reason and offending field
//	*backend.TransportError  -> backend 4xx status or 502, with the backend's detail
//	*shared.DomainError      -> status from the normalized code
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var validationErr *stock.ValidationError
	if errors.As(err, &validationErr) {
		code := dto.NormalizeErrorCode(string(validationErr.Reason))
		resp := dto.NewRejectionResponse(code, validationErr.Message, requestID, validationErr)
		resp.Error.Details = []dto.ValidationDetail{{
			Field:   rejectionField(validationErr),
			Message: validationErr.Message,
		}}
		c.JSON(dto.GetHTTPStatus(code), resp)
		return
	}

	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		status := transportErr.HTTPStatus()
		code := dto.ErrCodeBackendUnavailable
		if status < http.StatusInternalServerError {
			code = dto.ErrCodeBackendRejected
		}
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, transportErr.Message(), requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// rejectionField names the draft field a rejection points at
func rejectionField(e *stock.ValidationError) string {
	switch e.Reason {
	case stock.RejectReasonNoReference:
		return "references"
	case stock.RejectReasonNoWarehouse:
		return "warehouse_id"
	case stock.RejectReasonQuantityExceedsAvailable:
		return fmt.Sprintf("line_items[%d].quantity", e.LineIndex)
	default:
		return "line_items"
	}
}

func parseDraftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// rawInput returns the text of a JSON value as the user typed it: strings are unquoted,
// numbers are kept verbatim and anything else is passed on for the editor to coerce
func rawInput(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}
