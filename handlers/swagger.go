package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints for the API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>botdash API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the chatbot provisioning API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "botdash", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Chatbot": {
        "type": "object",
        "properties": {
          "id": {"type":"string"}, "ownerId": {"type":"string"}, "name": {"type":"string"},
          "personalityStyle": {"type":"string","enum":["Friendly","Professional","Humorous","Technical"]},
          "themeColor": {"type":"string","pattern":"^#[0-9a-fA-F]{6}$"}, "systemPrompt": {"type":"string"},
          "resourceFilePaths": {"type":"array","items":{"type":"string"}}, "embedSnippet": {"type":"string"},
          "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"}
        }
      },
      "ProvisionRequest": {
        "type": "object",
        "required": ["name","personalityStyle","themeColor","systemPrompt"],
        "properties": {
          "name": {"type":"string"}, "personalityStyle": {"type":"string"}, "themeColor": {"type":"string"},
          "systemPrompt": {"type":"string"}, "resourceFiles": {"type":"array","items":{"type":"string"}}
        }
      },
      "Error": { "type": "object", "properties": { "error": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/v1/chatbots": {
      "post": {
        "summary": "Provision a chatbot and its embed snippet",
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/ProvisionRequest"} } } },
        "responses": { "200": { "description": "{success, chatbot}" }, "500": { "description": "authentication, validation or persistence failure", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Error"} } } } }
      },
      "get": { "summary": "List the caller's chatbots, newest first", "responses": { "200": { "description": "chatbots" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/v1/chatbots/{id}": {
      "delete": { "summary": "Delete an owned chatbot", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found or not owned" } } }
    },
    "/api/v1/chatbots/orphans": {
      "get": { "summary": "List chatbots that never received an embed snippet", "responses": { "200": { "description": "chatbots" } } }
    },
    "/api/v1/chatbots/{id}/embed": {
      "post": { "summary": "Store the embed snippet of an orphaned chatbot", "responses": { "200": { "description": "{chatbot}" }, "404": { "description": "not found or not owned" } } }
    },
    "/api/v1/chatbots/{id}/resources": {
      "get": { "summary": "Presigned download links for knowledge files", "responses": { "200": { "description": "{links}" }, "404": { "description": "not found" }, "503": { "description": "object storage not configured" } } }
    },
    "/api/v1/resources": {
      "post": {
        "summary": "Validate and upload knowledge files",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"files":{"type":"array","items":{"type":"string","format":"binary"}}}} } } },
        "responses": { "200": { "description": "{paths, rejected}" }, "500": { "description": "upload failed" }, "503": { "description": "object storage not configured" } }
      }
    },
    "/api/v1/me": {
      "get": { "summary": "Get the authenticated caller", "responses": { "200": { "description": "{id, email}" }, "401": { "description": "unauthenticated" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Revoke the presented access token", "responses": { "200": { "description": "logged out" }, "401": { "description": "invalid token" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
