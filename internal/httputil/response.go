// Package httputil holds JSON response helpers and the upstream HTTP client.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	svcerrors "github.com/monitaro/pjmanager/internal/errors"
)

const maxRequestBodyBytes = 1 << 20

// DecodeJSON decodes a bounded request body into dst, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteError writes err using the status carried by a ServiceError, or
// fallback when err carries none.
func WriteError(w http.ResponseWriter, fallback int, err error) {
	if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
		WriteJSON(w, svcErr.HTTPStatus, ErrorBody{Error: svcErr.Message, Code: svcErr.Code, Details: svcErr.Details})
		return
	}
	WriteJSON(w, fallback, ErrorBody{Error: err.Error()})
}

// MessageBody is the body of a response that only carries a message.
type MessageBody struct {
	Message string `json:"message"`
}

// WriteMessage writes {"message": msg} with the given status.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageBody{Message: msg})
}
