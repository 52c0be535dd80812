package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Engagement Rewards API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/swagger/spec',
      dom_id: '#swagger-ui',
      deepLinking: true,
      persistAuthorization: true
    });
  </script>
</body>
</html>`

// APIDocs serves the OpenAPI document and a Swagger UI page that renders it.
type APIDocs struct {
	spec []byte
	etag string
}

// NewAPIDocs returns nil when spec is empty so the router can skip the routes.
func NewAPIDocs(spec []byte) *APIDocs {
	if len(spec) == 0 {
		return nil
	}
	sum := sha256.Sum256(spec)
	return &APIDocs{spec: spec, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}
}

// UI handles GET /swagger.
func (d *APIDocs) UI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}

// Spec handles GET /swagger/spec. Clients revalidate with If-None-Match.
func (d *APIDocs) Spec(c *gin.Context) {
	c.Header("ETag", d.etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == d.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", d.spec)
}
