package router

import (
	"errors"
	"net/http"
	"strings"

	"voice-rating/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Define keys for storing the token in the session and context.
const (
	csrfTokenSessionKey = "csrf_token"
	csrfTokenFormKey    = "_csrf"
	CSRFTokenContextKey = "csrf_token"
	CSRFTokenHeaderKey  = "X-CSRF-Token"
)

// CSRFProtection keeps one token per browser session and checks it on every
// unsafe request, from the _csrf form field or the X-CSRF-Token header.
func CSRFProtection() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		token, _ := session.Get(csrfTokenSessionKey).(string)
		if token == "" {
			newToken, err := utils.GenerateSecureToken(32)
			if err != nil {
				c.AbortWithError(http.StatusInternalServerError, errors.New("failed to generate CSRF token"))
				return
			}
			token = newToken
			session.Set(csrfTokenSessionKey, token)
			if err := session.Save(); err != nil {
				c.AbortWithError(http.StatusInternalServerError, errors.New("failed to save session"))
				return
			}
		}

		// Make the token available for the templates.
		c.Set(CSRFTokenContextKey, token)

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		// Form posts carry the field; fetch requests use the header.
		submitted := c.GetHeader(CSRFTokenHeaderKey)
		if submitted == "" {
			submitted = c.PostForm(csrfTokenFormKey)
		}
		if submitted != "" && submitted == token {
			c.Next()
			return
		}

		switch {
		case c.GetHeader("HX-Request") == "true":
			c.Header("HX-Redirect", "/")
			c.AbortWithStatus(http.StatusForbidden)
		case strings.HasPrefix(c.ContentType(), "application/json"):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
		default:
			c.AbortWithError(http.StatusForbidden, errors.New("invalid CSRF token"))
		}
	}
}
