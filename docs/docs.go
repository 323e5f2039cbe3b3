// Package docs holds the OpenAPI document served at /api/docs/doc.json.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/status": {
            "get": {
                "description": "Uptime, module statuses, connection counts and the latest detection",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "System status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusSummary"}}}
            }
        },
        "/api/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Lifecycle event counters",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/detections/current": {
            "get": {
                "produces": ["application/json"],
                "tags": ["detections"],
                "summary": "Latest detection",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.CurrentDetection"}}}
            }
        },
        "/api/detections/history": {
            "get": {
                "description": "Most recent detections first",
                "produces": ["application/json"],
                "tags": ["detections"],
                "summary": "Detection history",
                "parameters": [
                    {"type": "integer", "description": "Number of entries (1-200, default 20)", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HistoryPage"}}}
            }
        },
        "/api/esp32/command": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["devices"],
                "summary": "Send a command to the pai device",
                "parameters": [
                    {"description": "Command", "name": "command", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/api/esp32-cam/send-description": {
            "post": {
                "description": "Routes the description exactly like a camera detection",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["detections"],
                "summary": "Submit a detection description",
                "parameters": [
                    {"description": "Description", "name": "description", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.DetectionMessage"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "errors.APIError": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "details": {}
            }
        },
        "models.CommandRequest": {
            "type": "object",
            "required": ["command"],
            "properties": {
                "command": {"type": "string"},
                "value": {}
            }
        },
        "models.DetectionMessage": {
            "type": "object",
            "required": ["description_pt"],
            "properties": {
                "description_pt": {"type": "string"},
                "description_kz": {"type": "string"},
                "objects": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "timestamp": {"type": "integer"}
            }
        },
        "models.Detection": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "description_kz": {"type": "string"},
                "objects": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "timestamp": {"type": "integer"},
                "receivedAt": {"type": "integer"}
            }
        },
        "models.CurrentDetection": {
            "type": "object",
            "properties": {
                "detecting": {"type": "boolean"},
                "count": {"type": "integer"},
                "description": {"type": "string"},
                "description_kz": {"type": "string"},
                "objects": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "timestamp": {"type": "string"},
                "secondsAgo": {"type": "integer"}
            }
        },
        "models.HistoryPage": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "returned": {"type": "integer"},
                "detections": {"type": "array", "items": {"$ref": "#/definitions/models.Detection"}}
            }
        },
        "models.StatusSummary": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "integer"},
                "serverStartTime": {"type": "integer"},
                "esp32Status": {"type": "object"},
                "totalDetections": {"type": "integer"},
                "connectedClients": {"type": "object"},
                "sseClients": {"type": "integer"},
                "lastDetection": {"$ref": "#/definitions/models.Detection"},
                "currentObjects": {"type": "integer"},
                "version": {"type": "string"}
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
	Title:            "Telemetry Hub API",
	Description:      "Device telemetry distribution hub for the proximity and camera devices.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
