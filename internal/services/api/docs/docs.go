// Package docs holds the OpenAPI document served by swaggerkit
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.0.3",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "{{.BasePath}}"}],
    "security": [{"bearerAuth": []}],
    "paths": {
        "/meta/health": {"get": {"tags": ["meta"], "summary": "Liveness probe", "security": [], "responses": {"200": {"description": "OK"}}}},
        "/meta/ready": {"get": {"tags": ["meta"], "summary": "Readiness probe", "security": [], "responses": {"200": {"description": "OK"}, "503": {"description": "A backend is down"}}}},
        "/meta/version": {"get": {"tags": ["meta"], "summary": "Build info", "security": [], "responses": {"200": {"description": "OK"}}}},
        "/meta/service": {"get": {"tags": ["meta"], "summary": "Service identity", "security": [], "responses": {"200": {"description": "OK"}}}},
        "/credits": {
            "get": {
                "tags": ["credits"],
                "summary": "Current balance and subscription",
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Account"}}}}}
            }
        },
        "/credits/topups": {
            "post": {
                "tags": ["credits"],
                "summary": "Record a confirmed purchase",
                "description": "Requires the credits:grant scope. A repeated payment_ref answers 409.",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/TopUpRequest"}}}},
                "responses": {
                    "201": {"description": "Created", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Account"}}}},
                    "403": {"description": "Missing scope"},
                    "409": {"description": "Duplicate payment reference"}
                }
            }
        },
        "/generations/image": {
            "post": {
                "tags": ["generations"],
                "summary": "Submit an image to 3D task",
                "requestBody": {"required": true, "content": {"multipart/form-data": {"schema": {"type": "object", "properties": {"image": {"type": "string", "format": "binary"}}, "required": ["image"]}}}},
                "responses": {
                    "201": {"description": "Created", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Submitted"}}}},
                    "402": {"description": "Insufficient credits"},
                    "429": {"description": "Rate limited"},
                    "502": {"description": "Provider rejected the task"}
                }
            }
        },
        "/generations/text": {
            "post": {
                "tags": ["generations"],
                "summary": "Submit a text to 3D task",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/TextRequest"}}}},
                "responses": {
                    "201": {"description": "Created", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Submitted"}}}},
                    "402": {"description": "Insufficient credits"},
                    "429": {"description": "Rate limited"},
                    "502": {"description": "Provider rejected the task"}
                }
            }
        },
        "/generations/{taskId}": {
            "get": {
                "tags": ["generations"],
                "summary": "Check a task",
                "parameters": [{"name": "taskId", "in": "path", "required": true, "schema": {"type": "string"}}],
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/TaskView"}}}}, "404": {"description": "Unknown task"}}
            }
        },
        "/generations/{taskId}/status": {
            "get": {
                "tags": ["generations"],
                "summary": "Poll a task with cache busted URLs",
                "parameters": [{"name": "taskId", "in": "path", "required": true, "schema": {"type": "string"}}],
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/TaskView"}}}}, "404": {"description": "Task not found"}}
            }
        },
        "/history/models": {
            "get": {
                "tags": ["history"],
                "summary": "Generated models, newest first",
                "parameters": [{"name": "page", "in": "query", "schema": {"type": "integer", "minimum": 1}}],
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ModelPage"}}}}}
            }
        },
        "/history/transactions": {
            "get": {
                "tags": ["history"],
                "summary": "Credit transactions, newest first",
                "parameters": [{"name": "page", "in": "query", "schema": {"type": "integer", "minimum": 1}}],
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/TransactionPage"}}}}}
            }
        },
        "/history/activity": {
            "get": {
                "tags": ["history"],
                "summary": "Event counts over recent days",
                "parameters": [{"name": "days", "in": "query", "schema": {"type": "integer", "minimum": 1, "maximum": 365, "default": 30}}],
                "responses": {"200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Activity"}}}}}
            }
        }
    },
    "components": {
        "securitySchemes": {"bearerAuth": {"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}},
        "schemas": {
            "Account": {"type": "object", "properties": {
                "user_id": {"type": "string"},
                "credits": {"type": "integer"},
                "subscription": {"type": "object", "properties": {"type": {"type": "string", "enum": ["none", "ninja", "pro", "promax"]}, "status": {"type": "string", "enum": ["active", "cancelled", "expired"]}}}
            }},
            "TopUpRequest": {"type": "object", "required": ["user_id", "credits", "payment_ref"], "properties": {
                "user_id": {"type": "string"},
                "credits": {"type": "integer", "minimum": 1},
                "amount": {"type": "number"},
                "payment_ref": {"type": "string"},
                "type": {"type": "string", "enum": ["topup", "subscription"]},
                "plan": {"type": "string", "enum": ["ninja", "pro", "promax"]}
            }},
            "TextRequest": {"type": "object", "required": ["prompt"], "properties": {
                "prompt": {"type": "string", "maxLength": 600},
                "negative_prompt": {"type": "string", "maxLength": 600},
                "art_style": {"type": "string", "enum": ["realistic", "sculpture"]}
            }},
            "Submitted": {"type": "object", "properties": {
                "taskId": {"type": "string"},
                "status": {"type": "string"},
                "message": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "remainingCredits": {"type": "integer"}
            }},
            "Textures": {"type": "object", "properties": {"base_color": {"type": "string"}, "metallic": {"type": "string"}, "normal": {"type": "string"}, "roughness": {"type": "string"}}},
            "ModelURLs": {"type": "object", "properties": {"glb": {"type": "string"}, "obj": {"type": "string"}, "fbx": {"type": "string"}, "usdz": {"type": "string"}}},
            "TaskView": {"type": "object", "properties": {
                "taskId": {"type": "string"},
                "status": {"type": "string", "enum": ["PROCESSING", "SUCCEEDED", "FAILED"]},
                "progress": {"type": "integer"},
                "message": {"type": "string"},
                "error": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "model_urls": {"$ref": "#/components/schemas/ModelURLs"},
                "textures": {"type": "array", "items": {"$ref": "#/components/schemas/Textures"}},
                "timestamp": {"type": "integer", "format": "int64"}
            }},
            "Activity": {"type": "object", "properties": {
                "days": {"type": "integer"},
                "events": {"type": "array", "items": {"type": "object", "properties": {"event": {"type": "string"}, "count": {"type": "integer", "format": "int64"}}}},
                "models": {"type": "integer"}
            }},
            "Pagination": {"type": "object", "properties": {"currentPage": {"type": "integer"}, "totalPages": {"type": "integer"}, "totalItems": {"type": "integer"}, "hasMore": {"type": "boolean"}}},
            "ModelPage": {"type": "object", "properties": {
                "models": {"type": "array", "items": {"type": "object", "properties": {
                    "id": {"type": "string"},
                    "type": {"type": "string", "enum": ["image-to-3d", "text-to-3d"]},
                    "prompt": {"type": "string"},
                    "negative_prompt": {"type": "string"},
                    "art_style": {"type": "string"},
                    "thumbnail_url": {"type": "string"},
                    "model_urls": {"$ref": "#/components/schemas/ModelURLs"},
                    "status": {"type": "string"},
                    "created_at": {"type": "integer", "format": "int64"},
                    "task_error": {"type": "string"}
                }}},
                "pagination": {"$ref": "#/components/schemas/Pagination"}
            }},
            "TransactionPage": {"type": "object", "properties": {
                "transactions": {"type": "array", "items": {"type": "object", "properties": {
                    "id": {"type": "string"},
                    "type": {"type": "string"},
                    "amount": {"type": "number"},
                    "credits": {"type": "integer"},
                    "status": {"type": "string"},
                    "timestamp": {"type": "string", "format": "date-time"},
                    "payment_ref": {"type": "string"},
                    "modelType": {"type": "string"},
                    "prompt": {"type": "string"},
                    "imageUrl": {"type": "string"},
                    "modelUrl": {"type": "string"},
                    "description": {"type": "string"}
                }}},
                "pagination": {"$ref": "#/components/schemas/Pagination"}
            }}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Title:            "shapeshift API",
	Description:      "Image and text to 3D generation with a prepaid credit ledger",
	InfoInstanceName: "api",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
