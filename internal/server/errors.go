package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/jgoulah/gridinsight/internal/apperrors"
)

// APIError is the JSON body of every failed request
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Row        int    `json:"row,omitempty"`
	Column     string `json:"column,omitempty"`
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// statusByKind maps engine failure kinds to HTTP statuses
var statusByKind = map[apperrors.Kind]int{
	apperrors.KindSchema:       http.StatusBadRequest,
	apperrors.KindParse:        http.StatusBadRequest,
	apperrors.KindEmptyDataset: http.StatusBadRequest,
	apperrors.KindValidation:   http.StatusBadRequest,
	apperrors.KindNoData:       http.StatusConflict,
	apperrors.KindComputation:  http.StatusUnprocessableEntity,
}

// fromError converts an engine error into an API error
func fromError(err error) *APIError {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status, ok := statusByKind[appErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return &APIError{
			StatusCode: status,
			ErrorCode:  string(appErr.Kind),
			Message:    appErr.Error(),
			Row:        appErr.Row,
			Column:     appErr.Column,
		}
	}

	return &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "internal",
		Message:    err.Error(),
	}
}
