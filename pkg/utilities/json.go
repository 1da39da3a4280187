package utilities

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// DecodeJSON decodes a request body into v, capped at 1 MiB. Unknown fields
// are rejected.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// PageParams reads ?limit= and ?offset=. Invalid values read as zero.
func PageParams(q url.Values) (limit, offset uint) {
	if v, err := strconv.ParseUint(q.Get("limit"), 10, 32); err == nil {
		limit = uint(v)
	}
	if v, err := strconv.ParseUint(q.Get("offset"), 10, 32); err == nil {
		offset = uint(v)
	}
	return limit, offset
}
