// Package httputil provides JSON response and error helpers shared by HTTP
// handlers. Error bodies follow the {"error","error_description"} shape.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "wellgate/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError maps a domain error onto an HTTP status and JSON body.
// Internal errors omit the description so infrastructure details never reach
// clients; everything else surfaces the domain message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, wire := statusFor(code)

	body := errorBody{Error: wire}
	if code != dErrors.CodeInternal {
		body.Description = err.Error()
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) (int, string) {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest, "bad_request"
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case dErrors.CodeForbidden:
		return http.StatusForbidden, "forbidden"
	case dErrors.CodeNotFound:
		return http.StatusNotFound, "not_found"
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict, "conflict"
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout, "timeout"
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// DecodeJSON decodes a request body into v, rejecting unknown fields and
// bodies over 1 MiB.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
