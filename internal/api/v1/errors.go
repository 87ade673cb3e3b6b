package v1

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/orkestra/internal/domain"
)

// ErrorBody is the JSON error shape of every endpoint. Message repeats
// Detail for clients that only read "message".
type ErrorBody struct {
	huma.ErrorModel
	Message string `json:"message"`
}

func init() { //nolint:gochecknoinits // huma builds every error through NewError
	huma.NewError = newError
}

func newError(status int, msg string, errs ...error) huma.StatusError {
	details := make([]*huma.ErrorDetail, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		var detailer huma.ErrorDetailer
		if errors.As(err, &detailer) {
			details = append(details, detailer.ErrorDetail())
			continue
		}
		details = append(details, &huma.ErrorDetail{Message: err.Error()})
	}
	return &ErrorBody{
		ErrorModel: huma.ErrorModel{
			Title:  http.StatusText(status),
			Status: status,
			Detail: msg,
			Errors: details,
		},
		Message: msg,
	}
}

// storeError maps a domain sentinel to its HTTP status. what names the
// entity for not-found messages and the operation for internal errors.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(what + " not found")
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("insufficient permissions")
	case errors.Is(err, domain.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("failed to process "+what, err)
	}
}
