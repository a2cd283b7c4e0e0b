package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

// ErrUnauthenticated is returned when a request carries no valid bearer token.
var ErrUnauthenticated = zerr.New("unauthenticated")

// ErrorMessage is the body of every error response.
type ErrorMessage struct {
	Reason   string         `json:"reason"`
	Error    string         `json:"error"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

var statusTable = []struct {
	err    error
	status int
}{
	{ErrUnauthenticated, http.StatusUnauthorized},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrTaskNotFound, http.StatusNotFound},
	{domain.ErrUnauthorized, http.StatusForbidden},
	{domain.ErrStakeUnauthorized, http.StatusForbidden},
	{domain.ErrAlreadyExists, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrVerifierConflict, http.StatusConflict},
	{domain.ErrIneligibleNode, http.StatusUnprocessableEntity},
	{domain.ErrCapacityExceeded, http.StatusRequestEntityTooLarge},
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrGraph, http.StatusBadRequest},
	{domain.ErrStake, http.StatusUnprocessableEntity},
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, row := range statusTable {
		if errors.Is(err, row.err) {
			return row.status
		}
	}
	return http.StatusInternalServerError
}

// metadata merges the zerr metadata found along the error chain. Outer values win.
func metadata(err error) map[string]any {
	out := make(map[string]any)
	for err != nil {
		if z, ok := err.(*zerr.Error); ok {
			for k, v := range z.Metadata() {
				if _, seen := out[k]; !seen {
					out[k] = v
				}
			}
		}
		err = errors.Unwrap(err)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func errorMessage(err error, status int) ErrorMessage {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		reason := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			reason = s
		}
		return ErrorMessage{Reason: reason, Error: err.Error()}
	}
	return ErrorMessage{Reason: http.StatusText(status), Error: err.Error(), Metadata: metadata(err)}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(err)
	} else {
		s.logger.Debug("request rejected", "method", c.Request().Method, "path", c.Path(), "status", status,
			"error", err.Error())
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, errorMessage(err, status))
	}
	if writeErr != nil {
		s.logger.Error(writeErr)
	}
}
