package handlers

import (
	"context"
	"net/http"
	"strings"

	"voice-rating/internal/metrics"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/views"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResearcherSessionKey holds the logged-in researcher's id in the cookie.
const ResearcherSessionKey = "researcherID"

// ResearcherStore is what the dashboard reads.
type ResearcherStore interface {
	GetResearcherByEmail(ctx context.Context, email string) (*models.Researcher, error)
	ConditionSummaries(ctx context.Context) ([]metrics.ConditionSummary, error)
	SessionCounts(ctx context.Context) (map[models.SessionStatus]int64, error)
	ListResponses(ctx context.Context, filter repository.ResponseFilter) ([]models.TrialResponse, error)
}

type ResearcherHandler struct {
	log   *zap.Logger
	store ResearcherStore
}

func NewResearcherHandler(log *zap.Logger, store ResearcherStore) *ResearcherHandler {
	return &ResearcherHandler{log: log, store: store}
}

func (h *ResearcherHandler) ShowLoginPage(c *gin.Context) {
	render(c, h.log, http.StatusOK, "Researcher login", views.ResearcherLogin(c.GetString(csrfTokenContextKey), ""))
}

func (h *ResearcherHandler) Login(c *gin.Context) {
	email := strings.ToLower(strings.TrimSpace(c.PostForm("email")))
	password := c.PostForm("password")

	researcher, err := h.store.GetResearcherByEmail(c.Request.Context(), email)
	if err != nil || !researcher.CheckPassword(password) {
		h.log.Warn("Failed researcher login", zap.String("email", email), zap.String("client_ip", c.ClientIP()))
		render(c, h.log, http.StatusUnauthorized, "Researcher login",
			views.ResearcherLogin(c.GetString(csrfTokenContextKey), "Invalid email or password."))
		return
	}

	session := sessions.Default(c)
	session.Set(ResearcherSessionKey, researcher.ID)
	if err := session.Save(); err != nil {
		h.log.Error("Failed to save researcher session", zap.Error(err))
		serverError(c, "Failed to login")
		return
	}

	h.log.Info("Researcher logged in", zap.Uint("researcher_id", researcher.ID))
	c.Redirect(http.StatusSeeOther, "/researcher/results")
}

// Logout drops only the researcher key so a participant session in the same
// browser survives.
func (h *ResearcherHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(ResearcherSessionKey)
	if err := session.Save(); err != nil {
		h.log.Error("Failed to save session on logout", zap.Error(err))
		serverError(c, "Failed to logout")
		return
	}
	c.Redirect(http.StatusSeeOther, "/researcher/login")
}
