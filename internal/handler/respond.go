package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/dashboard"
	"github.com/searchapi-console/internal/httputil"
	"github.com/searchapi-console/internal/session"
)

// ErrorResponse is the standard JSON error response body.
type ErrorResponse = httputil.ErrorResponse

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	httputil.RespondJSON(w, status, data)
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	httputil.RespondError(w, status, code, message)
}

// RespondErr maps err to a status and body. Client errors keep their
// kind and message; results discarded after a session change answer
// 409. Anything else is a generic 500.
func RespondErr(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled error")
	}
	RespondJSON(w, status, body)
}

func errorBody(err error) (int, ErrorResponse) {
	var ce *client.Error
	switch {
	case errors.As(err, &ce):
		code := ce.Code
		if code == "" {
			code = ce.Kind.String()
		}
		return ce.Kind.HTTPStatus(), ErrorResponse{Error: code, Message: client.Message(ce)}
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, apikeys.ErrStale), errors.Is(err, dashboard.ErrStale):
		return http.StatusConflict, ErrorResponse{Error: "stale_result", Message: "The session changed before the request completed"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An unexpected error occurred"}
	}
}

// errorOrNil renders an error for embedding in a partial response.
func errorOrNil(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	_, body := errorBody(err)
	return &body
}
