package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/authorization"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	"github.com/smallbiznis/storefront/internal/validation"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError = validation.FieldError

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var batchErr *variationdomain.ValidationError
	if errors.As(err, &batchErr) && batchErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  batchErr.Errors,
		}
	}

	if field, code, ok := fieldValidationError(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, categorydomain.ErrDuplicate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the error type and code the request logger
// attaches to failed requests.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// fieldValidationError maps single-field domain errors to the field they
// reject.
func fieldValidationError(err error) (string, string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "request", "invalid_request", true
	case errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, variationdomain.ErrInvalidProductID):
		return "id", "invalid_id", true
	case errors.Is(err, productimagedomain.ErrInvalidID):
		return "id", "invalid_id", true
	case errors.Is(err, productdomain.ErrInvalidTitle),
		errors.Is(err, categorydomain.ErrInvalidTitle):
		return "title", "invalid_title", true
	case errors.Is(err, categorydomain.ErrInvalidSlug):
		return "title", "invalid_slug", true
	case errors.Is(err, productdomain.ErrInvalidPrice):
		return "price", "invalid_price", true
	case errors.Is(err, productdomain.ErrInvalidCategory):
		return "category_ids", "invalid_category", true
	case errors.Is(err, productdomain.ErrInvalidScope):
		return "scope", "invalid_scope", true
	case errors.Is(err, productimagedomain.ErrInvalidFilename):
		return "filename", "invalid_filename", true
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "page_token", "invalid_page_token", true
	default:
		return "", "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, categorydomain.ErrNotFound),
		errors.Is(err, productimagedomain.ErrNotFound),
		errors.Is(err, productimagedomain.ErrProductNotFound),
		errors.Is(err, variationdomain.ErrProductNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_filename":
		return "filename must have an extension"
	case "invalid_price":
		return "must be a non-negative amount with at most 2 decimal places"
	case "invalid_category":
		return "unknown category"
	default:
		return "invalid value"
	}
}
