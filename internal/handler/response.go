package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/oneshare/signal-server-go/internal/errors"
	"github.com/oneshare/signal-server-go/internal/httputil"
	"github.com/oneshare/signal-server-go/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.ValidationError("Invalid JSON body")
	}
	return nil
}

// validationError turns a validator failure into an INVALID_INPUT error.
func validationError(err error) error {
	var fieldErr *util.FieldError
	if errors.As(err, &fieldErr) {
		return apperrors.InvalidInput(fieldErr.Field, fieldErr.Reason)
	}
	return apperrors.ValidationError(err.Error())
}

// isAbsent reports whether a raw JSON field was omitted or sent as null.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
