//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
	httpSwagger "github.com/swaggo/http-swagger"
)

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "basePath": "{{.BasePath}}",
    "paths": {
        "/state": {"get": {"summary": "Current assistant state", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/events": {"get": {"summary": "Stream state snapshots as NDJSON", "produces": ["application/x-ndjson"], "responses": {"200": {"description": "OK"}}}},
        "/download": {"post": {"summary": "Start downloading and loading the resolved model", "responses": {"202": {"description": "Accepted"}, "409": {"description": "Conflict"}}}},
        "/ask": {"post": {"summary": "Ask a navigation question", "consumes": ["application/json"], "produces": ["application/x-ndjson"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "415": {"description": "Unsupported Media Type"}}}},
        "/models": {"get": {"summary": "List backend models", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}}}}
    }
}`

// SwaggerInfo holds the exported API description.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "navagent API",
	Description:      "Campus navigation assistant lifecycle and question answering.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
