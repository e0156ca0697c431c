package auth

import (
	"encoding/json"
	"io"
	"net/http"
)

// Error codes for everything that can go wrong while talking to the
// upstream API or validating input locally.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNetwork            = "NETWORK_ERROR"
	CodeServer             = "SERVER_ERROR"
)

// Error carries a stable code plus a user-presentable message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Code == code
}

// HTTPStatus maps an error to the status this service answers with.
func HTTPStatus(err error) int {
	apiErr, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch apiErr.Code {
	case CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// upstreamDetail is the error payload shape the upstream API uses.
// Django answers either {"error": "..."} or {"detail": "..."}.
type upstreamDetail struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// ErrorFromResponse classifies a non-2xx upstream response into the
// taxonomy above. The server-provided detail string wins over the
// default message when present.
func ErrorFromResponse(resp *http.Response, defaultMessage string) *Error {
	message := defaultMessage
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		var detail upstreamDetail
		if json.Unmarshal(body, &detail) == nil {
			if detail.Error != "" {
				message = detail.Error
			} else if detail.Detail != "" {
				message = detail.Detail
			}
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Code: CodeInvalidCredentials, Message: message}
	case resp.StatusCode == http.StatusBadRequest:
		return &Error{Code: CodeValidation, Message: message}
	default:
		return &Error{Code: CodeServer, Message: message}
	}
}

// NetworkError wraps a transport failure (including timeouts).
func NetworkError() *Error {
	return &Error{Code: CodeNetwork, Message: "No se pudo conectar con el servidor"}
}
