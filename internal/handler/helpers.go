package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JeffCSZ/vms/internal/model"
	"github.com/JeffCSZ/vms/internal/policy"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides machine-readable context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]any) {
	var ctxMap map[string]any
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// writeValidationError reports field-level validation detail under a 400.
func writeValidationError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]any, len(verr.Fields))
		for k, v := range verr.Fields {
			fields[k] = v
		}
		writeError(w, http.StatusBadRequest, "Validation failed", map[string]any{"fields": fields})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// writeDenied maps an authorization denial to a 403 carrying the structured
// reason, so UIs can explain why, not just that, access was denied.
func writeDenied(w http.ResponseWriter, d policy.Decision) {
	msg := "Access denied"
	switch d.Reason {
	case policy.DenyWrongRole:
		msg = "Your role does not permit this operation"
	case policy.DenyNotOwner:
		msg = "You can only modify your own visitor requests"
	}
	writeError(w, http.StatusForbidden, msg, map[string]any{"reason": string(d.Reason)})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
