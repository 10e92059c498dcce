package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/goevery/tracker/internal/ierr"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success bool           `json:"success"`
	Code    ierr.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers with the status of the error code. Errors without one
// are logged and reported as internal.
func writeError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	handlerErr, ok := ierr.As(err)
	if !ok {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))

		handlerErr = ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
	}

	writeJSON(w, handlerErr.HTTPStatus(), errorResponse{
		Success: false,
		Code:    handlerErr.Code,
		Message: handlerErr.Message,
	})
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body"))
	}

	return nil
}
