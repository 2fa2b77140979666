// Package docs 注册 /swagger 使用的 OpenAPI 文档
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
        "/api/sensor-data": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["遥测"],
                "summary": "上报传感器数据",
                "parameters": [
                    {"description": "原始遥测 JSON 对象", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/gateway.IngestResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/api/alerts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "告警列表",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "severity", "in": "query"},
                    {"type": "string", "name": "device_id", "in": "query"},
                    {"type": "boolean", "name": "include_archived", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.AlertListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/alerts/acknowledge": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "批量确认告警",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.BatchAcknowledgeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.BatchAcknowledgeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/alerts/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "告警详情",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/alerts/{id}/acknowledge": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "确认告警",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.AcknowledgeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/alerts/{id}/assign": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "指派处理人",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.AssignRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}}}
            }
        },
        "/api/alerts/{id}/notes": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "更新备注",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.NotesRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}}}
            }
        },
        "/api/alerts/{id}/resolve": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "解除告警",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/api.ResolveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/api/alerts/{id}/archive": {
            "post": {
                "produces": ["application/json"],
                "tags": ["告警"],
                "summary": "归档告警",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/coremodel.Alert"}}}
            }
        },
        "/api/escalation/sweep": {
            "post": {
                "produces": ["application/json"],
                "tags": ["运维"],
                "summary": "立即执行一次升级巡检",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/escalation.Result"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "message": {"type": "string"}}
        },
        "api.AcknowledgeRequest": {
            "type": "object",
            "required": ["acknowledged_by"],
            "properties": {"acknowledged_by": {"type": "string"}, "notes": {"type": "string"}}
        },
        "api.BatchAcknowledgeRequest": {
            "type": "object",
            "required": ["alert_ids", "acknowledged_by"],
            "properties": {
                "alert_ids": {"type": "array", "items": {"type": "integer"}},
                "acknowledged_by": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "api.BatchAcknowledgeResponse": {
            "type": "object",
            "properties": {
                "acknowledged": {"type": "array", "items": {"$ref": "#/definitions/coremodel.Alert"}},
                "requested": {"type": "integer"}
            }
        },
        "api.AssignRequest": {
            "type": "object",
            "required": ["assigned_to"],
            "properties": {"assigned_to": {"type": "string"}}
        },
        "api.NotesRequest": {
            "type": "object",
            "required": ["notes"],
            "properties": {"notes": {"type": "string"}}
        },
        "api.ResolveRequest": {
            "type": "object",
            "properties": {"notes": {"type": "string"}}
        },
        "api.AlertListResponse": {
            "type": "object",
            "properties": {
                "alerts": {"type": "array", "items": {"$ref": "#/definitions/coremodel.Alert"}},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "gateway.IngestResult": {
            "type": "object",
            "properties": {"record_id": {"type": "integer"}, "alerts_triggered": {"type": "integer"}}
        },
        "escalation.Result": {
            "type": "object",
            "properties": {"checked": {"type": "integer"}, "escalated": {"type": "integer"}, "skipped": {"type": "boolean"}}
        },
        "coremodel.Alert": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "type": {"type": "string"},
                "severity": {"type": "string"},
                "device_id": {"type": "string"},
                "worker_id": {"type": "integer"},
                "worker_name": {"type": "string"},
                "trigger_value": {"type": "string"},
                "threshold": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "assigned_to": {"type": "string"},
                "acknowledged_by": {"type": "string"},
                "acknowledged_at": {"type": "string"},
                "resolved_at": {"type": "string"},
                "response_time_ms": {"type": "integer"},
                "escalated": {"type": "boolean"},
                "escalated_at": {"type": "string"},
                "notes": {"type": "string"},
                "archived": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo 文档元信息
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Worker Safety Alert API",
	Description:      "可穿戴设备遥测接入与告警处置接口",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
