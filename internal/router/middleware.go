package router

import (
	"context"
	"net/http"

	"voice-rating/internal/handlers"
	"voice-rating/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const researcherContextKey = "researcher"

// ResearcherLookup resolves the researcher stored in the session.
type ResearcherLookup interface {
	GetResearcherByID(ctx context.Context, id uint) (*models.Researcher, error)
}

// ResearcherLoader checks for a researcher id in the session. If found, it
// loads the researcher and adds it to the context; a stale id is dropped so
// deleted accounts do not keep working sessions.
func ResearcherLoader(log *zap.Logger, lookup ResearcherLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := session.Get(handlers.ResearcherSessionKey).(uint)
		if !ok {
			c.Next()
			return
		}

		researcher, err := lookup.GetResearcherByID(c.Request.Context(), id)
		if err != nil {
			log.Warn("Dropping researcher session", zap.Uint("researcher_id", id), zap.Error(err))
			session.Delete(handlers.ResearcherSessionKey)
			if err := session.Save(); err != nil {
				log.Error("Failed to save session", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(researcherContextKey, researcher)
		c.Next()
	}
}

// ResearcherRequired sends anyone without a loaded researcher to the login page.
func ResearcherRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(researcherContextKey); !exists {
			if c.GetHeader("HX-Request") == "true" {
				c.Header("HX-Redirect", "/researcher/login")
			} else {
				c.Redirect(http.StatusFound, "/researcher/login")
			}
			c.Abort()
			return
		}
		c.Next()
	}
}
