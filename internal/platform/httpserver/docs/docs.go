// Package docs registers the OpenAPI description served under /swagger/.
// Regenerate with: swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs
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
        "/v1/governance/transactions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "List transactions in [from, to)",
                "parameters": [
                    {"type": "integer", "description": "First id", "name": "from", "in": "query", "required": true},
                    {"type": "integer", "description": "Id after the last", "name": "to", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TransactionListResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Appends a batch of registered actions and casts the caller's first vote.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "Submit a governance transaction",
                "parameters": [
                    {"type": "string", "description": "Member address", "name": "X-Caller-Address", "in": "header", "required": true},
                    {"type": "string", "description": "Replay-safe submission key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Batch", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SubmitTransactionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.SubmitTransactionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/governance/transactions/{id}/confirm": {
            "post": {
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "Confirm a transaction",
                "parameters": [
                    {"type": "string", "description": "Member address", "name": "X-Caller-Address", "in": "header", "required": true},
                    {"type": "integer", "description": "Transaction id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.EvaluationResponse"}}
                }
            }
        },
        "/v1/governance/transactions/{id}/revoke": {
            "post": {
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "Revoke a transaction",
                "parameters": [
                    {"type": "string", "description": "Member address", "name": "X-Caller-Address", "in": "header", "required": true},
                    {"type": "integer", "description": "Transaction id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.EvaluationResponse"}}
                }
            }
        },
        "/v1/governance/transactions/{id}/evaluate": {
            "post": {
                "description": "Anyone may evaluate; terminal transactions are returned unchanged.",
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "Evaluate a transaction outcome",
                "parameters": [
                    {"type": "integer", "description": "Transaction id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.EvaluationResponse"}}
                }
            }
        },
        "/v1/governance/members": {
            "get": {
                "produces": ["application/json"],
                "tags": ["governance"],
                "summary": "List members",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AddressListResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "return_data": {"type": "string"}
            }
        },
        "http.SubmitTransactionRequest": {
            "type": "object",
            "properties": {
                "actions": {"type": "array", "items": {"type": "string"}},
                "values": {"type": "array", "items": {"type": "string"}},
                "payloads": {"type": "array", "items": {"type": "string"}},
                "audit_data": {"type": "array", "items": {"type": "string"}},
                "confirm": {"type": "boolean"}
            }
        },
        "http.EvaluationResponse": {
            "type": "object",
            "properties": {
                "transaction_id": {"type": "integer"},
                "status": {"type": "string"},
                "resolved": {"type": "boolean"},
                "dispatched": {"type": "integer"},
                "return_data": {"type": "string"}
            }
        },
        "http.SubmitTransactionResponse": {
            "type": "object",
            "properties": {
                "transaction_id": {"type": "integer"},
                "status": {"type": "string"},
                "resolved": {"type": "boolean"},
                "dispatched": {"type": "integer"},
                "return_data": {"type": "string"},
                "replayed": {"type": "boolean"}
            }
        },
        "http.AddressListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.TransactionListResponse": {
            "type": "object",
            "properties": {
                "from": {"type": "integer"},
                "to": {"type": "integer"},
                "items": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Consortium governance API",
	Description:      "Multisig governance engine: submit, vote on and inspect governance transactions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
