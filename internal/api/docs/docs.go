// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with `swag init -g internal/api/router.go -o internal/api/docs`
// after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign up",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ports.SignUpInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/ports.Result"}}
                }
            }
        },
        "/auth/signin": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in with password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.signInRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ports.Result"}}
                }
            }
        },
        "/auth/signout": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign out",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.Result"}}
                }
            }
        },
        "/auth/password-reset": {
            "post": {
                "tags": ["auth"],
                "summary": "Request password reset",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.passwordResetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/ports.Result"}}
                }
            }
        },
        "/auth/oauth/start": {
            "get": {
                "tags": ["auth"],
                "summary": "Start OAuth sign-in",
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/auth/oauth/callback": {
            "get": {
                "tags": ["auth"],
                "summary": "OAuth callback",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "code", "in": "query", "required": true},
                    {"type": "string", "name": "state", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "303": {"description": "See Other"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/session": {
            "get": {
                "tags": ["session"],
                "summary": "Current session",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}}
                }
            }
        },
        "/session/events": {
            "get": {
                "tags": ["session"],
                "summary": "Session change stream",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/session/route": {
            "put": {
                "tags": ["session"],
                "summary": "Report current UI route",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.routeRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/session/profile": {
            "patch": {
                "tags": ["session"],
                "summary": "Patch local profile",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.ProfilePatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/session/refresh": {
            "post": {
                "tags": ["session"],
                "summary": "Refresh identity",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.Result"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        }
    },
    "definitions": {
        "domain.Subscription": {
            "type": "object",
            "properties": {
                "plan": {"type": "string"},
                "is_trial": {"type": "boolean"},
                "ends_at": {"type": "string"}
            }
        },
        "domain.Identity": {
            "type": "object",
            "properties": {
                "principal_id": {"type": "string"},
                "email": {"type": "string"},
                "normalized_email": {"type": "string"},
                "display_name": {"type": "string"},
                "photo_url": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "country": {"type": "string"},
                "business_name": {"type": "string"},
                "business_address": {"type": "string"},
                "role": {"type": "string"},
                "is_admin": {"type": "boolean"},
                "permissions": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "subscription": {"$ref": "#/definitions/domain.Subscription"},
                "created_at": {"type": "string"}
            }
        },
        "domain.ProfilePatch": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "photo_url": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "country": {"type": "string"},
                "business_name": {"type": "string"},
                "business_address": {"type": "string"},
                "subscription": {"$ref": "#/definitions/domain.Subscription"}
            }
        },
        "ports.SignUpInput": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "country": {"type": "string"},
                "address": {"type": "string"},
                "role": {"type": "string", "enum": ["user", "business"]},
                "business_name": {"type": "string"},
                "business_address": {"type": "string"}
            }
        },
        "ports.Result": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "code": {"type": "string"},
                "error": {"type": "string"},
                "identity": {"$ref": "#/definitions/domain.Identity"}
            }
        },
        "handler.signInRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.passwordResetRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"}
            }
        },
        "handler.routeRequest": {
            "type": "object",
            "required": ["route"],
            "properties": {
                "route": {"type": "string"}
            }
        },
        "handler.sessionResponse": {
            "type": "object",
            "properties": {
                "identity": {"$ref": "#/definitions/domain.Identity"},
                "loading": {"type": "boolean"},
                "redirect": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Identity Session API",
	Description:      "Session state and sign-in operations for the UI.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
