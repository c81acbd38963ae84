package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/conorfennell/part5srs/internal/domain"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v. Unknown fields are rejected.
// allowEmpty accepts a missing body and leaves v unchanged.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return domain.InvalidArgument("decode request", "invalid JSON body: %v", err)
	}
	return nil
}
