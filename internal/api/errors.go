package api

import (
	"errors"
	"net/http"

	"github.com/joeblew999/plat-mapping/internal/service"
)

// Type error codes returned in the "error" field.
const (
	CodeDuplicateColor = "duplicate_color"
	CodeMissingData    = "missing_data"
	CodeNotFound       = "not_found"
	CodeInvalidRequest = "invalid_request"
)

// TypeError is the body of a failed type mutation: {"error": "<code>"}.
type TypeError struct {
	Status int    `json:"-"`
	Code   string `json:"error" doc:"Error code" enum:"duplicate_color,missing_data,not_found,invalid_request"`
}

func (e *TypeError) Error() string  { return e.Code }
func (e *TypeError) GetStatus() int { return e.Status }

func typeError(err error) error {
	switch {
	case errors.Is(err, service.ErrDuplicateColor):
		return &TypeError{Status: http.StatusConflict, Code: CodeDuplicateColor}
	case errors.Is(err, service.ErrMissingData):
		return &TypeError{Status: http.StatusBadRequest, Code: CodeMissingData}
	case errors.Is(err, service.ErrNotFound):
		return &TypeError{Status: http.StatusNotFound, Code: CodeNotFound}
	}
	return &TypeError{Status: http.StatusInternalServerError, Code: CodeInvalidRequest}
}
