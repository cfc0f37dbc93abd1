package router

import (
	"errors"
	"fmt"
	"net/http"

	"voice-rating/internal/utils"

	"github.com/gin-gonic/gin"
)

const CspNonceContextKey = "csp_nonce"

// NonceMiddleware creates a new cryptographic nonce for each request and adds
// it to the Gin context for use in headers and templates.
func NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := utils.GenerateSecureToken(16)
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, errors.New("failed to generate CSP nonce"))
			return
		}
		c.Set(CspNonceContextKey, nonce)
		c.Next()
	}
}

// ContentSecurityPolicy sets the CSP header on full page loads. HTMX swaps
// inherit the policy of the page they land in.
func ContentSecurityPolicy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("HX-Request") != "true" {
			csp := fmt.Sprintf(
				"default-src 'self'; script-src 'self' https://unpkg.com https://cdn.jsdelivr.net 'nonce-%s'; style-src 'self' 'unsafe-inline'; media-src 'self'; connect-src 'self'",
				c.GetString(CspNonceContextKey),
			)
			c.Header("Content-Security-Policy", csp)
		}
		c.Next()
	}
}
