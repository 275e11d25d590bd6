package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Appraisal API",
        "description": "Role-based staff performance evaluation service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "Staff account administration"},
        {"name": "Departments", "description": "Departments and teams"},
        {"name": "Tasks", "description": "Task assignment and scoring"},
        {"name": "Evaluations", "description": "Performance evaluation lifecycle"},
        {"name": "Roles", "description": "Role policies and membership"},
        {"name": "Reports", "description": "Aggregate reports and exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Paginated users", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate email or employee ID"}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "User"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Updated"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Soft-delete a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Cannot delete own account"}
                }
            }
        },
        "/evaluations": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Create an evaluation",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Role or team scope violation"},
                    "409": {"description": "Duplicate active evaluation"}
                }
            },
            "get": {
                "tags": ["Evaluations"],
                "summary": "List evaluations scoped by role",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Evaluations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluations/{id}/approve": {
            "post": {
                "tags": ["Evaluations"],
                "summary": "Approve or reject a submitted evaluation",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Reviewed"},
                    "400": {"description": "Not in a reviewable state"}
                }
            }
        },
        "/evaluations/results/{userID}": {
            "get": {
                "tags": ["Evaluations"],
                "summary": "Composite evaluation results for a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "userID", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Weighted composite score breakdown"}
                }
            }
        },
        "/roles": {
            "get": {
                "tags": ["Roles"],
                "summary": "List role policies with members",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Role listings, degraded flag in meta"}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "Generate an aggregate report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "query", "required": true, "type": "string", "enum": ["overview", "users", "departments", "performance"]},
                    {"name": "start_date", "in": "query", "type": "string"},
                    {"name": "end_date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report payload"}
                }
            }
        },
        "/reports/pdf": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an asynchronous report export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Job queued"},
                    "503": {"description": "Export queue unavailable"}
                }
            }
        },
        "/reports/jobs/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Poll a report job",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Job status and download URL when finished"}
                }
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download an exported report",
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
