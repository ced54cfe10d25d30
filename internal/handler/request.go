package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JeffCSZ/vms/internal/gate"
	"github.com/JeffCSZ/vms/internal/model"
	"github.com/JeffCSZ/vms/internal/policy"
	"github.com/JeffCSZ/vms/internal/server/middleware"
	"github.com/JeffCSZ/vms/internal/store"
)

// RequestHandler serves the visitor request CRUD surface plus the public-code
// lookup used at the gate.
type RequestHandler struct {
	store *store.Store
	now   func() time.Time
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(st *store.Store) *RequestHandler {
	return &RequestHandler{store: st, now: time.Now}
}

// requestPayload is the writable subset of a visitor request. Everything else
// (ID, public code, owner, created_at) is server-assigned.
type requestPayload struct {
	VisitorName    string    `json:"visitor_name"`
	VehiclePlate   string    `json:"vehicle_plate"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ValidUntil     time.Time `json:"valid_until"`
}

// requestWithStatus decorates a request with its classification at lookup
// time. Only the code-lookup endpoint returns it; the status is never stored.
type requestWithStatus struct {
	model.VisitorRequest
	Status gate.Outcome `json:"status"`
}

// Create issues a new visitor request owned by the caller.
// POST /api/v1/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpCreateRequest, nil); !d.Allowed {
		writeDenied(w, d)
		return
	}

	var payload requestPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := model.ValidateRequestFields(payload.VisitorName, payload.VehiclePlate, payload.ScheduledStart, payload.ValidUntil); err != nil {
		writeValidationError(w, err)
		return
	}

	req := &model.VisitorRequest{
		OwnerID:        p.IdentityID,
		VisitorName:    payload.VisitorName,
		VehiclePlate:   payload.VehiclePlate,
		ScheduledStart: payload.ScheduledStart,
		ValidUntil:     payload.ValidUntil,
	}
	if err := h.store.CreateRequest(r.Context(), req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create request: "+err.Error())
		return
	}
	req.OwnerEmail = p.Email
	req.OwnerUnitNo = p.UnitNo
	req.OwnerStreetNo = p.StreetNo

	writeJSON(w, http.StatusCreated, req)
}

// ListOwn lists the caller's requests, newest first.
// GET /api/v1/requests
func (h *RequestHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpListOwnRequests, nil); !d.Allowed {
		writeDenied(w, d)
		return
	}

	requests, err := h.store.ListRequestsByOwner(r.Context(), p.IdentityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: requests,
		Meta:     &model.ResponseMeta{Count: len(requests)},
	})
}

// ListAll lists every request regardless of owner, newest first.
// GET /api/v1/requests/all
func (h *RequestHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpListAllRequests, nil); !d.Allowed {
		writeDenied(w, d)
		return
	}

	requests, err := h.store.ListAllRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: requests,
		Meta:     &model.ResponseMeta{Count: len(requests)},
	})
}

// GetByID fetches a single request by its internal ID.
// GET /api/v1/requests/{id}
func (h *RequestHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpReadRequest, nil); !d.Allowed {
		writeDenied(w, d)
		return
	}

	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}
	req, err := h.store.GetRequestByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Visitor request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch request: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetByCode resolves a scanned public code and classifies it against the
// current clock. Possession of the code is the credential here, so any
// authenticated role may call this; an unknown code is indistinguishable
// from a deleted one.
// GET /api/v1/requests/code/{publicCode}
func (h *RequestHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpReadByCode, nil); !d.Allowed {
		writeDenied(w, d)
		return
	}

	code, err := gate.ParseScannedCode(chi.URLParam(r, "publicCode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Not a valid visitor code",
			map[string]any{"fields": map[string]any{"publicCode": "must be a visitor code in canonical form"}})
		return
	}

	req, err := h.store.GetRequestByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No visitor request matches this code")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch request: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, requestWithStatus{
		VisitorRequest: *req,
		Status:         gate.Classify(h.now(), req.ScheduledStart, req.ValidUntil),
	})
}

// Update replaces the editable fields of a request the caller owns.
// PUT /api/v1/requests/{id}
func (h *RequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	existing, err := h.store.GetRequestByID(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to fetch request: "+err.Error())
		return
	}
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpUpdateRequest, existing); !d.Allowed {
		// A verifier probing IDs learns nothing beyond "not yours".
		if existing == nil && d.Reason == policy.DenyNotOwner {
			writeError(w, http.StatusNotFound, "Visitor request not found")
			return
		}
		writeDenied(w, d)
		return
	}

	var payload requestPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := model.ValidateRequestFields(payload.VisitorName, payload.VehiclePlate, payload.ScheduledStart, payload.ValidUntil); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.store.UpdateRequest(r.Context(), id, payload.VisitorName, payload.VehiclePlate, payload.ScheduledStart, payload.ValidUntil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Visitor request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update request: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a request the caller owns.
// DELETE /api/v1/requests/{id}
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	existing, err := h.store.GetRequestByID(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to fetch request: "+err.Error())
		return
	}
	if d := policy.Authorize(p.Role, p.IdentityID, policy.OpDeleteRequest, existing); !d.Allowed {
		if existing == nil && d.Reason == policy.DenyNotOwner {
			writeError(w, http.StatusNotFound, "Visitor request not found")
			return
		}
		writeDenied(w, d)
		return
	}

	if err := h.store.DeleteRequest(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Visitor request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete request: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
