package openapi

import (
	"encoding/json"
	"testing"
)

func TestSpecMarshals(t *testing.T) {
	doc := Spec()
	buf, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	var decoded struct {
		OpenAPI string `json:"openapi"`
	}
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.OpenAPI != "3.1.0" {
		t.Errorf("openapi version = %q, want 3.1.0", decoded.OpenAPI)
	}
}

func TestSpecCoversAPISurface(t *testing.T) {
	doc := Spec()
	for _, path := range []string{
		"/api/v1/account/register",
		"/api/v1/account/login",
		"/api/v1/account/logout",
		"/api/v1/requests",
		"/api/v1/requests/all",
		"/api/v1/requests/{id}",
		"/api/v1/requests/code/{publicCode}",
		"/healthz",
		"/readyz",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("path %s missing from document", path)
		}
	}
}

func TestCodeLookupDocumentsStatus(t *testing.T) {
	doc := Spec()
	ref, ok := doc.Components.Schemas["VisitorRequestWithStatus"]
	if !ok {
		t.Fatal("VisitorRequestWithStatus schema missing")
	}
	status, ok := ref.Value.Properties["status"]
	if !ok {
		t.Fatal("status property missing")
	}
	if len(status.Value.Enum) == 0 {
		t.Error("status enum is empty")
	}
}
