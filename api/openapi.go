package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// openAPISpec is the served API description. Route coverage is maintained by
// hand alongside registerRoutes; schemas reference the request/response
// structs in this package.
var openAPISpec = map[string]any{
	"openapi": "3.0.3",
	"info": map[string]any{
		"title":       "Nvisy API",
		"description": "Multi-tenant backend for document-centric AI workflows.",
		"version":     "1.0.0",
	},
	"servers": []map[string]any{
		{"url": "/api/v1"},
	},
	"components": map[string]any{
		"securitySchemes": map[string]any{
			"bearerAuth": map[string]any{
				"type":         "http",
				"scheme":       "bearer",
				"bearerFormat": "JWT",
			},
		},
	},
	"paths": map[string]any{
		"/auth/signup":                        pathDoc("post", "Create an account and issue a session token", 201),
		"/auth/login":                         pathDoc("post", "Authenticate and issue a session token", 200),
		"/auth/logout":                        pathDoc("post", "Revoke the calling token", 204),
		"/auth/logout-everywhere":             pathDoc("post", "Revoke all tokens and sessions of the caller", 200),
		"/workspaces/":                        pathDoc("post", "Create a workspace", 201),
		"/workspaces/{ws}/members/":           pathDoc("get", "List workspace members", 200),
		"/workspaces/{ws}/members/{account}/role": pathDoc("patch", "Update a member's role", 200),
		"/workspaces/{ws}/members/leave":      pathDoc("post", "Leave the workspace", 200),
		"/workspaces/{ws}/connections/":       pathDoc("post", "Create a connection (encrypts data)", 201),
		"/connections/{id}/":                  pathDoc("get", "Read, update, or delete a connection", 200),
		"/workspaces/{ws}/webhooks/":          pathDoc("post", "Create a webhook (returns secret once)", 201),
		"/webhooks/{id}/test/":                pathDoc("post", "Synchronous test delivery", 200),
		"/workspaces/{ws}/documents/":         pathDoc("post", "Create a document", 201),
		"/documents/{id}/versions/":           pathDoc("get", "List document versions", 200),
		"/workspaces/{ws}/pipelines/":         pathDoc("post", "Create a pipeline", 201),
		"/pipelines/{id}/runs/":               pathDoc("post", "Enqueue a pipeline run", 201),
		"/workspaces/{ws}/search/":            pathDoc("post", "Similarity search over workspace chunks", 200),
	},
}

func pathDoc(method, summary string, status int) map[string]any {
	return map[string]any{
		method: map[string]any{
			"summary": summary,
			"responses": map[string]any{
				strconv.Itoa(status): map[string]any{"description": summary},
			},
			"security": []map[string]any{{"bearerAuth": []string{}}},
		},
	}
}

// OpenAPI serves the API description document.
func (s *Service) OpenAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, openAPISpec)
}
