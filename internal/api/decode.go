package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// requestError is a rejected request body.
type requestError struct {
	status  int
	message string
}

// decodeJSON reads a JSON request body into dst. The body must be
// non-empty and sent as application/json. tooLarge is the message used when
// the body limit is hit.
func decodeJSON(r *http.Request, dst interface{}, tooLarge string) *requestError {
	if r.Body == nil {
		return &requestError{http.StatusBadRequest, msgBodyMissing}
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{http.StatusRequestEntityTooLarge, tooLarge}
		}
		return &requestError{http.StatusBadRequest, msgInvalidJSON}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &requestError{http.StatusBadRequest, msgBodyMissing}
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return &requestError{http.StatusBadRequest, msgContentType}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &requestError{http.StatusBadRequest, msgInvalidJSON}
	}
	return nil
}
