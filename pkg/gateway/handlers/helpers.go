package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meridianfx/engage/pkg/gateway/apierror"
	"github.com/meridianfx/engage/pkg/gateway/mw"
	"github.com/meridianfx/engage/pkg/gateway/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		err = &apierror.Error{Type: apierror.ErrNotFound, Message: "not found"}
	}
	apiErr, status := apierror.FromError(err, reqID)
	mw.WriteJSONError(w, status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apierror.Invalid("request body is not valid JSON", "")
	}
	return nil
}
