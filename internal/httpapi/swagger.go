package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// SwaggerInfo holds the API description served at /swagger/doc.json.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "a9d API",
	Description:      "Network evaluation and aux module control.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the swagger UI and doc.json under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/evaluate": {
            "post": {
                "summary": "Evaluate the loaded network",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.EvaluateRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EvaluateResponse"}},
                    "400": {"description": "Shape mismatch", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too busy", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Not ready", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/reload": {
            "post": {
                "summary": "Replace the loaded network",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "schema": {"$ref": "#/definitions/types.ReloadRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReloadResponse"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.ReloadResponse"}}
                }
            }
        },
        "/status": {"get": {"summary": "Manager status", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/bundles": {"get": {"summary": "Bundles under the bundles dir", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/backends": {"get": {"summary": "Registered backends", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/aux": {"get": {"summary": "Aux module exports", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/aux/test": {"post": {"summary": "Run the aux self-test", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/aux/think": {
            "post": {
                "summary": "Run the aux decision routine",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.AuxThinkRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AuxCallResponse"}}}
            }
        },
        "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
        "/readyz": {"get": {"summary": "Readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "loading"}}}}
    },
    "definitions": {
        "types.EvaluateRequest": {
            "type": "object",
            "properties": {
                "feature": {"type": "array", "items": {"type": "number"}},
                "all": {"type": "boolean"}
            }
        },
        "types.EvaluateResponse": {
            "type": "object",
            "properties": {
                "output": {"type": "array", "items": {"type": "number"}},
                "outputs": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}},
                "handle_id": {"type": "string"},
                "backend": {"type": "string"}
            }
        },
        "types.ReloadRequest": {
            "type": "object",
            "properties": {
                "path": {"type": "string"},
                "bundle": {"type": "string"},
                "async": {"type": "boolean"}
            }
        },
        "types.ReloadResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "op_id": {"type": "string"},
                "handle_id": {"type": "string"}
            }
        },
        "types.AuxThinkRequest": {
            "type": "object",
            "properties": {
                "history": {"type": "array", "items": {"type": "integer"}},
                "budget": {"type": "number"}
            }
        },
        "types.AuxCallResponse": {
            "type": "object",
            "properties": {
                "function": {"type": "string"},
                "results": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"}
            }
        }
    }
}`
