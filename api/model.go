package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sksmith/harvest-ledger/core/ledger"
)

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	AppCode    int64  `json:"code,omitempty"`  // application-specific error code
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Conflict.",
		ErrorText:      err.Error(),
	}
}

func ErrUnprocessable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "Request cannot be fulfilled.",
		ErrorText:      err.Error(),
	}
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
var ErrForbidden = &ErrResponse{HTTPStatusCode: http.StatusForbidden, StatusText: "Forbidden."}
var ErrUnavailable = &ErrResponse{
	HTTPStatusCode: http.StatusServiceUnavailable,
	StatusText:     "Service unavailable.",
	ErrorText:      "Storage is temporarily unavailable, try again.",
}
var ErrInternalServer = &ErrResponse{
	Err:            nil,
	HTTPStatusCode: http.StatusInternalServerError,
	StatusText:     "Internal server error.",
	ErrorText:      "An internal server error has occurred.",
}

// LedgerErr picks the response for an error returned by the ledger service.
func LedgerErr(err error) render.Renderer {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInvalidLedger):
		return ErrInvalidRequest(err)
	case errors.Is(err, ledger.ErrOwnershipMismatch):
		return ErrForbidden
	case errors.Is(err, ledger.ErrLedgerNotFound):
		return ErrNotFound
	case errors.Is(err, ledger.ErrConcurrentUpdateConflict), errors.Is(err, ledger.ErrLedgerInUse),
		errors.Is(err, ledger.ErrLedgerExists):
		return ErrConflict(err)
	case ledger.IsGuardFailure(err):
		return ErrUnprocessable(err)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return ErrUnavailable
	default:
		return ErrInternalServer
	}
}
