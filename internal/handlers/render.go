package handlers

import (
	"net/http"

	"voice-rating/views"
	"voice-rating/views/components"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the router middleware.
const (
	csrfTokenContextKey = "csrf_token"
	cspNonceContextKey  = "csp_nonce"
)

const pageTitle = "Voice Rating Study"

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// render writes component alone for HTMX swaps and wrapped in the layout for
// direct navigation.
func render(c *gin.Context, log *zap.Logger, status int, title string, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)

	var err error
	if isHTMX(c) {
		err = component.Render(c.Request.Context(), c.Writer)
	} else {
		csrfToken := c.GetString(csrfTokenContextKey)
		cspNonce := c.GetString(cspNonceContextKey)
		err = views.Layout(title, csrfToken, cspNonce).Render(templ.WithChildren(c.Request.Context(), component), c.Writer)
	}
	if err != nil {
		log.Error("Error rendering page", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
}

// renderAlert swaps a message into target without replacing the page.
func renderAlert(c *gin.Context, log *zap.Logger, status int, target, message string) {
	c.Header("HX-Retarget", target)
	c.Header("HX-Reswap", "innerHTML")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := components.Alert(message, "error").Render(c.Request.Context(), c.Writer); err != nil {
		log.Error("Error rendering alert", zap.Error(err))
	}
}

func serverError(c *gin.Context, message string) {
	c.String(http.StatusInternalServerError, message)
}
