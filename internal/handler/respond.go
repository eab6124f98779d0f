// internal/handler/respond.go
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/omnipost-backend/internal/errors"
	"github.com/unclebandit/omnipost-backend/internal/logger"
)

// Validate checks request DTOs.
var Validate = validator.New()

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

type badRequest struct {
	msg     string
	reasons []string
}

func (e *badRequest) Error() string { return e.msg }

// BadRequest builds an error that WriteError maps to 400.
func BadRequest(msg string, reasons ...string) error {
	return &badRequest{msg: msg, reasons: reasons}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var (
		bad        *badRequest
		validation *appErrors.ValidationError
		scheduling *appErrors.SchedulingError
		mismatch   *appErrors.ChannelMismatchError
		illegal    *appErrors.IllegalTransitionError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &validation), errors.As(err, &scheduling):
		return http.StatusUnprocessableEntity
	case errors.As(err, &mismatch), errors.As(err, &illegal):
		return http.StatusConflict
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Error: err.Error()}

	var validation *appErrors.ValidationError
	var bad *badRequest
	switch {
	case errors.As(err, &validation):
		body.Reasons = validation.Reasons
	case errors.As(err, &bad):
		body.Reasons = bad.reasons
	}

	if status == http.StatusInternalServerError {
		logger.WithContext(r.Context(), log).WithError(err).
			WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).
			Error("request failed")
		body.Error = "internal server error"
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the body into dst and runs struct validation.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return BadRequest("invalid body: " + err.Error())
	}
	if err := Validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			reasons := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				reasons = append(reasons, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return BadRequest("invalid body", reasons...)
		}
		return BadRequest("invalid body: " + err.Error())
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be empty.
func DecodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return BadRequest("invalid body: " + err.Error())
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return DecodeJSON(r, dst)
}

// IntQuery reads a positive int query param, returning def when absent or invalid.
func IntQuery(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}
