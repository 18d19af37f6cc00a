package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders hardens JSON responses. Uploaded images are served cross-origin so the
// admin frontend can embed them.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cross-Origin-Resource-Policy", "cross-origin")
		c.Next()
	}
}
