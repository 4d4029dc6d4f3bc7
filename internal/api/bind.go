package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

const maxBodyBytes = 64 << 10

// decodeJSON strictly decodes the request body into v. An empty body leaves
// v untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return httpError{http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json"}
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	case errors.Is(err, io.EOF):
		return badRequest("invalid_json", "request body is empty")
	case errors.As(err, &tooLarge):
		return httpError{http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large"}
	default:
		return badRequest("invalid_json", err.Error())
	}
}
