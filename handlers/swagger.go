package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>skillmatch-auth — Swagger</title>
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

// Minimal OpenAPI document covering the auth and session surfaces.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "skillmatch-auth", "version": "v1.0.0" },
  "paths": {
    "/api/v1/auth/register": {
      "post": { "summary": "Create an account and log in", "responses": { "201": { "description": "user and tokens" }, "409": { "description": "email taken" } } }
    },
    "/api/v1/auth/login": {
      "post": { "summary": "Password login", "responses": { "200": { "description": "user and tokens" }, "401": { "description": "invalid credentials" } } }
    },
    "/api/v1/auth/refresh": {
      "post": { "summary": "Rotate a token pair", "responses": { "200": { "description": "new tokens" }, "401": { "description": "invalid refresh token" } } }
    },
    "/api/v1/auth/logout": {
      "post": { "summary": "Revoke the current session", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/auth/me": {
      "get": { "summary": "Current account", "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/v1/sessions": {
      "get": { "summary": "List active sessions", "responses": { "200": { "description": "sessions" } } }
    },
    "/api/v1/sessions/{id}": {
      "delete": { "summary": "Revoke one session", "responses": { "200": { "description": "revoked" }, "404": { "description": "not found" } } }
    },
    "/api/v1/sessions/revoke-others": {
      "post": { "summary": "Log out everywhere else", "responses": { "200": { "description": "count revoked" } } }
    },
    "/api/v1/sessions/stats": {
      "get": { "summary": "Session statistics", "responses": { "200": { "description": "stats" } } }
    },
    "/api/v1/sessions/security": {
      "get": { "summary": "Suspicious activity report", "responses": { "200": { "description": "signals" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
