// Package openapi builds the OpenAPI 3.1 document describing the keygate
// HTTP API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

const resultRef = "#/components/schemas/Result"

// Generate returns the OpenAPI document for the keygate API served at
// baseURL.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "keygate API",
			Description: "Admin accounts, sessions and API key issuance.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
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

	addSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set("/api/admin/register", &openapi3.PathItem{Post: registerOperation()})
	doc.Paths.Set("/api/admin/login", &openapi3.PathItem{Post: loginOperation()})
	doc.Paths.Set("/api/admin/dashboard", &openapi3.PathItem{Get: dashboardOperation()})
	doc.Paths.Set("/api/key/generate", &openapi3.PathItem{Post: generateOperation()})

	return doc
}

func str() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func strFormat(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format}}
}

func int64Schema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
}

func object(required []string, props openapi3.Schemas) *openapi3.Schema {
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Required:   required,
		Properties: props,
	}
}

// withResult extends the Result envelope with extra properties.
func withResult(required []string, props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			AllOf: openapi3.SchemaRefs{
				openapi3.NewSchemaRef(resultRef, nil),
				{Value: object(required, props)},
			},
		},
	}
}

func addSchemas(s openapi3.Schemas) {
	s["Result"] = &openapi3.SchemaRef{Value: object([]string{"success"}, openapi3.Schemas{
		"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
		"message": str(),
	})}

	s["Credentials"] = &openapi3.SchemaRef{Value: object([]string{"email", "password"}, openapi3.Schemas{
		"email":    strFormat("email"),
		"password": strFormat("password"),
	})}

	s["IssueKeyRequest"] = &openapi3.SchemaRef{Value: object([]string{"first_name", "email"}, openapi3.Schemas{
		"first_name": str(),
		"last_name":  str(),
		"email":      strFormat("email"),
	})}

	s["DashboardRow"] = &openapi3.SchemaRef{Value: object(nil, openapi3.Schemas{
		"user_id":       int64Schema(),
		"first_name":    str(),
		"email":         str(),
		"user_since":    strFormat("date-time"),
		"api_key_value": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Masked key value."}},
		"status":        str(),
		"expiry_date":   strFormat("date-time"),
	})}
}

func jsonBody(ref, description string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(ref, nil)),
		},
	}
}

// newResponses builds a Responses object with one success entry and a
// Result-shaped entry for every error status.
func newResponses(successCode, successDesc string, success *openapi3.SchemaRef, errors map[string]string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	desc := successDesc
	responses.Set(successCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(success),
		},
	})
	for code, d := range errors {
		d := d
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(resultRef, nil)),
			},
		})
	}
	return responses
}

func registerOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"admin"},
		Summary:     "Register an admin",
		OperationID: "registerAdmin",
		RequestBody: jsonBody("#/components/schemas/Credentials", "New admin credentials"),
		Responses: newResponses("201", "Admin registered", openapi3.NewSchemaRef(resultRef, nil), map[string]string{
			"400": "Email or password missing",
			"409": "Email already registered",
			"500": "Internal error",
		}),
	}
}

func loginOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"admin"},
		Summary:     "Log in and obtain a session token",
		Description: "The token is valid for one hour. Unknown email and wrong password produce the same response.",
		OperationID: "loginAdmin",
		RequestBody: jsonBody("#/components/schemas/Credentials", "Admin credentials"),
		Responses: newResponses("200", "Session issued", withResult([]string{"token", "adminId"}, openapi3.Schemas{
			"token":     str(),
			"adminId":   int64Schema(),
			"expiresIn": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
		}), map[string]string{
			"400": "Malformed request body",
			"401": "Invalid email or password",
			"500": "Internal error",
		}),
	}
}

func dashboardOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"admin"},
		Summary:     "List users and their API keys",
		Description: "Newest user first. Key values are masked.",
		OperationID: "adminDashboard",
		Security:    &openapi3.SecurityRequirements{{"bearerAuth": {}}},
		Responses: newResponses("200", "Dashboard rows", withResult([]string{"data"}, openapi3.Schemas{
			"data": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef("#/components/schemas/DashboardRow", nil),
			}},
		}), map[string]string{
			"401": "Token not provided",
			"403": "Token invalid or expired",
			"500": "Internal error",
		}),
	}
}

func generateOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"key"},
		Summary:     "Register a user and issue an API key",
		Description: "The returned key is shown once and valid for one year.",
		OperationID: "generateKey",
		RequestBody: jsonBody("#/components/schemas/IssueKeyRequest", "User to issue a key to"),
		Responses: newResponses("201", "Key issued", withResult([]string{"apiKey"}, openapi3.Schemas{
			"apiKey": str(),
		}), map[string]string{
			"400": "First name or email missing",
			"409": "Email already registered",
			"500": "Internal error",
		}),
	}
}
