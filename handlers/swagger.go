package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the OpenAPI description of the portal's JSON routes.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Şikayet portalı API</title>
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

// {variant} is one of citizen, admin or department.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "sikayet-portal", "version": "v0.1.0" },
  "paths": {
    "/login": {
      "post": {
        "summary": "Log in with e-mail and password; sets the session cookie",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "redirect target" }, "401": { "description": "wrong credentials" } }
      }
    },
    "/logout": {
      "post": { "summary": "End the session", "responses": { "200": { "description": "redirect target" } } }
    },
    "/api/session": {
      "get": { "summary": "Remaining session lifetime", "responses": { "200": { "description": "remainingMs, userName, roles" }, "401": { "description": "no session" } } }
    },
    "/api/notices": {
      "get": { "summary": "Drain pending notices", "responses": { "200": { "description": "notice list" } } }
    },
    "/api/register/check-email": {
      "post": { "summary": "Check whether an e-mail is registered", "responses": { "200": { "description": "exists flag" } } }
    },
    "/api/register/send-code": {
      "post": { "summary": "Send a verification code", "responses": { "200": { "description": "code sent" } } }
    },
    "/api/register/verify-code": {
      "post": { "summary": "Verify the e-mailed code", "responses": { "200": { "description": "verified" } } }
    },
    "/api/register": {
      "post": { "summary": "Create a citizen account", "responses": { "201": { "description": "registered" } } }
    },
    "/api/dashboard/{variant}": {
      "get": { "summary": "Dashboard snapshot; ?type= filters by complaint type", "responses": { "200": { "description": "rows, markers, metrics" }, "404": { "description": "role missing" } } }
    },
    "/api/dashboard/{variant}/refresh": {
      "post": { "summary": "Reload from the complaint API, discarding local status edits", "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/dashboard/{variant}/map.geojson": {
      "get": {
        "summary": "Markers as a GeoJSON feature collection, limited to the viewport when one is given",
        "parameters": [
          { "name": "lon", "in": "query", "schema": { "type": "number" } },
          { "name": "lat", "in": "query", "schema": { "type": "number" } },
          { "name": "zoom", "in": "query", "schema": { "type": "number" } },
          { "name": "width", "in": "query", "schema": { "type": "integer" } },
          { "name": "height", "in": "query", "schema": { "type": "integer" } }
        ],
        "responses": { "200": { "description": "FeatureCollection" }, "400": { "description": "bad viewport" } }
      }
    },
    "/api/dashboard/{variant}/map/click": {
      "post": { "summary": "Resolve a map click to a complaint popup", "responses": { "200": { "description": "popup or null" } } }
    },
    "/api/dashboard/{variant}/complaints": {
      "post": { "summary": "Create a complaint", "responses": { "201": { "description": "created" }, "422": { "description": "field errors" } } }
    },
    "/api/dashboard/{variant}/complaints/{id}": {
      "get": { "summary": "Cached complaint and its edit draft", "responses": { "200": { "description": "record" } } },
      "put": { "summary": "Update a complaint", "responses": { "200": { "description": "updated" }, "422": { "description": "field errors" } } },
      "delete": { "summary": "Delete a complaint; requires ?confirm=true", "responses": { "204": { "description": "deleted" }, "428": { "description": "confirmation required" } } }
    },
    "/api/dashboard/{variant}/complaints/{id}/status": {
      "put": { "summary": "Change status (department: through the API; others: local only)", "responses": { "200": { "description": "record" }, "202": { "description": "superseded by a later update" } } }
    },
    "/api/dashboard/{variant}/complaints/{id}/verify": {
      "post": { "summary": "Confirm another citizen's complaint", "responses": { "200": { "description": "record" } } }
    },
    "/api/dashboard/{variant}/complaints/{id}/resolve": {
      "post": { "summary": "Resolve with a note and optional photo (multipart)", "responses": { "200": { "description": "record" } } }
    },
    "/api/admin/users": {
      "get": { "summary": "List users", "responses": { "200": { "description": "users" } } },
      "post": { "summary": "Create user", "responses": { "201": { "description": "created" } } }
    },
    "/api/admin/departments": {
      "get": { "summary": "List departments", "responses": { "200": { "description": "departments" } } },
      "post": { "summary": "Create department", "responses": { "201": { "description": "created" } } }
    },
    "/api/admin/complaint-types": {
      "get": { "summary": "List complaint types", "responses": { "200": { "description": "types" } } },
      "post": { "summary": "Create complaint type", "responses": { "201": { "description": "created" } } }
    }
  }
}`
