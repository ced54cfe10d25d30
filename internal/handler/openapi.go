package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIHandler serves the API description document. The document is static
// for the life of the process, so it is marshaled once on first request.
type OpenAPIHandler struct {
	doc *openapi3.T

	once   sync.Once
	body   []byte
	marshE error
}

// NewOpenAPIHandler creates a new OpenAPIHandler for the given document.
func NewOpenAPIHandler(doc *openapi3.T) *OpenAPIHandler {
	return &OpenAPIHandler{doc: doc}
}

// ServeSpec writes the OpenAPI document as JSON.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.body, h.marshE = json.Marshal(h.doc)
	})
	if h.marshE != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize API description: "+h.marshE.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.body)
}
