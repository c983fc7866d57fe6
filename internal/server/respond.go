package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope every failed request returns.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
	Status  int              `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError renders err in the error envelope. Internal failures are logged
// and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	detail := errorDetail{
		Code:    errors.CodeOf(err),
		Message: err.Error(),
		Status:  status,
	}

	var appErr *errors.AppError
	isApp := errors.As(err, &appErr)
	if isApp {
		detail.Message = strings.TrimSpace(appErr.Resource + " " + appErr.Message)
		if appErr.Err != nil {
			detail.Details = appErr.Err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorFields("Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		detail.Details = ""
		if !isApp || detail.Message == "" {
			detail.Message = "internal server error"
		}
	}

	writeJSON(w, status, errorBody{Error: detail})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.Validation("request body is required")
		}
		return &errors.AppError{Code: errors.ErrCodeValidation, Message: "invalid JSON body", Err: err}
	}
	return nil
}
