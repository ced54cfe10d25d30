// Package openapi builds the OpenAPI 3.1 document describing the HTTP API.
// The API surface is fixed, so the document is constructed once at startup
// rather than generated from introspection.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/JeffCSZ/vms/internal/model"
)

// Spec returns the OpenAPI document for the API.
func Spec() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Visitor Management API",
			Description: "Issue scannable visitor entry codes and verify them at the gate.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: "/"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["AuthResponse"] = authResponseSchema()
	doc.Components.Schemas["VisitorRequest"] = visitorRequestSchema(false)
	doc.Components.Schemas["VisitorRequestWithStatus"] = visitorRequestSchema(true)
	doc.Components.Schemas["VisitorRequestPayload"] = requestPayloadSchema()
	doc.Components.Schemas["VisitorRequestList"] = listSchema("#/components/schemas/VisitorRequest")

	doc.Paths = openapi3.NewPaths()
	addAccountPaths(doc)
	addRequestPaths(doc)
	addSystemPaths(doc)

	return doc
}

func addAccountPaths(doc *openapi3.T) {
	registerBody := objectSchema(openapi3.Schemas{
		"email":     stringSchema("email"),
		"password":  stringSchema(""),
		"role":      roleSchema(),
		"unit_no":   stringSchema(""),
		"street_no": stringSchema(""),
	})
	registerBody.Value.Required = []string{"email", "password", "role"}

	loginBody := objectSchema(openapi3.Schemas{
		"email":         stringSchema("email"),
		"password":      stringSchema(""),
		"expected_role": roleSchema(),
		"remember_me":   {Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
	})
	loginBody.Value.Required = []string{"email", "password"}

	doc.Paths.Set("/api/v1/account/register", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "registerAccount",
			Summary:     "Register a new account",
			Tags:        []string{"account"},
			RequestBody: jsonRequestBody(registerBody),
			Responses: responses(map[string]responseSpec{
				"201": {"Account created", refSchema("#/components/schemas/AuthResponse")},
				"400": {"Validation failed", errorRef()},
				"409": {"Email already registered", errorRef()},
			}),
		},
	})

	doc.Paths.Set("/api/v1/account/login", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "login",
			Summary:     "Authenticate and obtain a session token",
			Tags:        []string{"account"},
			RequestBody: jsonRequestBody(loginBody),
			Responses: responses(map[string]responseSpec{
				"200": {"Authenticated", refSchema("#/components/schemas/AuthResponse")},
				"401": {"Invalid credentials", errorRef()},
				"403": {"Role mismatch or account locked", errorRef()},
			}),
		},
	})

	doc.Paths.Set("/api/v1/account/logout", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "logout",
			Summary:     "End the session (client discards the token)",
			Tags:        []string{"account"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"200": {"Logged out", objectSchema(openapi3.Schemas{
					"success": {Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
					"message": stringSchema(""),
				})},
				"401": {"Not authenticated", errorRef()},
			}),
		},
	})
}

func addRequestPaths(doc *openapi3.T) {
	payloadRef := refSchema("#/components/schemas/VisitorRequestPayload")
	requestRef := refSchema("#/components/schemas/VisitorRequest")
	listRef := refSchema("#/components/schemas/VisitorRequestList")

	doc.Paths.Set("/api/v1/requests", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listOwnRequests",
			Summary:     "List the caller's visitor requests, newest first",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"200": {"Requests", listRef},
				"401": {"Not authenticated", errorRef()},
				"403": {"Role does not permit", errorRef()},
			}),
		},
		Post: &openapi3.Operation{
			OperationID: "createRequest",
			Summary:     "Issue a new visitor request",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			RequestBody: jsonRequestBody(payloadRef),
			Responses: responses(map[string]responseSpec{
				"201": {"Created", requestRef},
				"400": {"Validation failed", errorRef()},
				"401": {"Not authenticated", errorRef()},
				"403": {"Role does not permit", errorRef()},
			}),
		},
	})

	doc.Paths.Set("/api/v1/requests/all", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listAllRequests",
			Summary:     "List every visitor request, newest first",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"200": {"Requests", listRef},
				"401": {"Not authenticated", errorRef()},
				"403": {"Role does not permit", errorRef()},
			}),
		},
	})

	idParam := pathParam("id", "integer", "Internal request ID")
	doc.Paths.Set("/api/v1/requests/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: &openapi3.Operation{
			OperationID: "getRequest",
			Summary:     "Fetch a single visitor request",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"200": {"Request", requestRef},
				"401": {"Not authenticated", errorRef()},
				"404": {"Not found", errorRef()},
			}),
		},
		Put: &openapi3.Operation{
			OperationID: "updateRequest",
			Summary:     "Replace the editable fields of a visitor request",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			RequestBody: jsonRequestBody(payloadRef),
			Responses: responses(map[string]responseSpec{
				"200": {"Updated", requestRef},
				"400": {"Validation failed", errorRef()},
				"401": {"Not authenticated", errorRef()},
				"403": {"Not the owner", errorRef()},
				"404": {"Not found", errorRef()},
			}),
		},
		Delete: &openapi3.Operation{
			OperationID: "deleteRequest",
			Summary:     "Delete a visitor request",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"204": {"Deleted", nil},
				"401": {"Not authenticated", errorRef()},
				"403": {"Not the owner", errorRef()},
				"404": {"Not found", errorRef()},
			}),
		},
	})

	doc.Paths.Set("/api/v1/requests/code/{publicCode}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{pathParam("publicCode", "string", "Public code from the scanned artifact")},
		Get: &openapi3.Operation{
			OperationID: "getRequestByCode",
			Summary:     "Resolve a scanned code and classify it against the clock",
			Tags:        []string{"requests"},
			Security:    bearerSecurity(),
			Responses: responses(map[string]responseSpec{
				"200": {"Request with status", refSchema("#/components/schemas/VisitorRequestWithStatus")},
				"400": {"Not a valid code", errorRef()},
				"401": {"Not authenticated", errorRef()},
				"404": {"No matching request", errorRef()},
			}),
		},
	})
}

func addSystemPaths(doc *openapi3.T) {
	statusSchema := objectSchema(openapi3.Schemas{
		"status": stringSchema(""),
	})
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "healthz",
			Summary:     "Liveness probe",
			Tags:        []string{"system"},
			Responses: responses(map[string]responseSpec{
				"200": {"Process is running", statusSchema},
			}),
		},
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "readyz",
			Summary:     "Readiness probe",
			Tags:        []string{"system"},
			Responses: responses(map[string]responseSpec{
				"200": {"Database reachable", statusSchema},
				"503": {"Database unreachable", statusSchema},
			}),
		},
	})
}

// --- Schema builders ---

func errorResponseSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"error": objectSchema(openapi3.Schemas{
			"code":    {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": stringSchema(""),
			"context": objectSchema(nil),
		}),
	})
}

func authResponseSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"token":        stringSchema(""),
		"token_type":   stringSchema(""),
		"expires_in":   {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
		"expires_at":   stringSchema("date-time"),
		"email":        stringSchema("email"),
		"display_name": stringSchema(""),
		"role":         roleSchema(),
		"unit_no":      stringSchema(""),
		"street_no":    stringSchema(""),
	})
}

func visitorRequestSchema(withStatus bool) *openapi3.SchemaRef {
	props := openapi3.Schemas{
		"id":              {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
		"public_code":     stringSchema("uuid"),
		"owner_id":        stringSchema("uuid"),
		"visitor_name":    stringSchema(""),
		"vehicle_plate":   stringSchema(""),
		"scheduled_start": stringSchema("date-time"),
		"valid_until":     stringSchema("date-time"),
		"created_at":      stringSchema("date-time"),
		"owner_email":     stringSchema("email"),
		"owner_unit_no":   stringSchema(""),
		"owner_street_no": stringSchema(""),
	}
	if withStatus {
		props["status"] = &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"string"},
				Enum: []any{"valid", "expired", "wrong-day", "not-found"},
			},
		}
	}
	return objectSchema(props)
}

func requestPayloadSchema() *openapi3.SchemaRef {
	ref := objectSchema(openapi3.Schemas{
		"visitor_name": {Value: &openapi3.Schema{
			Type:      &openapi3.Types{"string"},
			MaxLength: ptrUint64(model.MaxVisitorNameLen),
		}},
		"vehicle_plate": {Value: &openapi3.Schema{
			Type:      &openapi3.Types{"string"},
			MaxLength: ptrUint64(model.MaxVehiclePlateLen),
		}},
		"scheduled_start": stringSchema("date-time"),
		"valid_until":     stringSchema("date-time"),
	})
	ref.Value.Required = []string{"visitor_name", "vehicle_plate", "scheduled_start", "valid_until"}
	return ref
}

func listSchema(itemRef string) *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"resource": {Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef(itemRef, nil),
		}},
		"meta": objectSchema(openapi3.Schemas{
			"count": {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
		}),
	})
}

func roleSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"string"},
			Enum: []any{string(model.RoleIssuer), string(model.RoleVerifier)},
		},
	}
}

// --- Small helpers ---

type responseSpec struct {
	description string
	schema      *openapi3.SchemaRef
}

func responses(specs map[string]responseSpec) *openapi3.Responses {
	out := openapi3.NewResponses()
	for code, spec := range specs {
		desc := spec.description
		resp := &openapi3.Response{Description: &desc}
		if spec.schema != nil {
			resp.Content = openapi3.NewContentWithJSONSchemaRef(spec.schema)
		}
		out.Set(code, &openapi3.ResponseRef{Value: resp})
	}
	return out
}

func jsonRequestBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
		},
	}
}

func stringSchema(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format},
	}
}

func refSchema(ref string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(ref, nil)
}

func errorRef() *openapi3.SchemaRef {
	return refSchema("#/components/schemas/ErrorResponse")
}

func pathParam(name, typ, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "path",
			Required:    true,
			Description: description,
			Schema:      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}}},
		},
	}
}

func bearerSecurity() *openapi3.SecurityRequirements {
	reqs := openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate("bearerAuth"))
	return reqs
}

func ptrUint64(n int) *uint64 {
	v := uint64(n)
	return &v
}
