// Package shared holds response helpers used by every HTTP handler.
package shared

import (
	"encoding/json"
	"net/http"

	"valcore/pkg/errs"
)

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a coded error to its HTTP status and writes the envelope.
// The envelope carries the code and message only; wrapped causes stay in the
// logs.
func WriteError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	var body ErrorBody
	body.Error.Code = string(code)
	body.Error.Message = errs.MessageOf(err)
	WriteJSON(w, errs.ToHTTPStatus(code), body)
}
