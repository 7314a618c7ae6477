package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxBodyBytes bounds webhook request bodies.
const maxBodyBytes = 1 << 20

// Response is the JSON envelope of every reply.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func okResponse(data any) Response {
	return Response{Status: "ok", Data: data}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Status: "error",
		Error:  &ResponseError{Code: code, Message: message},
	})
}

// decode reads a JSON body into v. Unknown fields are rejected. On failure
// it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v interface{ validate() error }) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", fmt.Sprintf("decode request: %v", err))
		return false
	}
	if err := v.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return false
	}
	return true
}
