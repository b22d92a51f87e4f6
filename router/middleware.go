package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wardenfs/warden/config"
	"github.com/wardenfs/warden/sandbox"
)

// AttachRequestID attaches a unique ID to the incoming request so that any
// errors logged while handling it can be traced back from the response.
func AttachRequestID(c *gin.Context) {
	id := uuid.New().String()
	c.Set("request_id", id)
	c.Header("X-Request-Id", id)
	c.Next()
}

// AttachSandbox attaches the sandbox instance to the request context.
func AttachSandbox(s *sandbox.Sandbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("sandbox", s)
		c.Next()
	}
}

// Set the access request control headers on all of the requests.
func SetAccessControlHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
	c.Next()
}

// AuthorizationMiddleware authenticates the request against the daemon's
// configured bearer token.
func AuthorizationMiddleware(c *gin.Context) {
	auth := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(auth) != 2 || auth[0] != "Bearer" {
		c.Header("WWW-Authenticate", "Bearer")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "The required authorization headers were not present in the request.",
		})
		return
	}

	if auth[1] != config.Get().Api.Token {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "You are not authorized to access this endpoint.",
		})
		return
	}
	c.Next()
}

// ExtractSandbox returns the sandbox instance attached to the request.
func ExtractSandbox(c *gin.Context) *sandbox.Sandbox {
	return c.MustGet("sandbox").(*sandbox.Sandbox)
}
