package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeBody reads a JSON request body into v and validates it. On failure
// it writes a 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return false
	}
	return true
}

// validationMessage returns the first field message of an ozzo error so that
// clients see "path is required" rather than "path: path is required.".
func validationMessage(err error) string {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, key := range []string{"path", "type", "content", "metadata", "oldPath", "newPath", "messages", "threadId", "usage"} {
			if fe, ok := errs[key]; ok && fe != nil {
				return fe.Error()
			}
		}
	}
	return err.Error()
}
