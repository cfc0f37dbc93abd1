package router

import (
	"net/http"
	"time"

	"voice-rating/internal/config"
	"voice-rating/internal/handlers"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

const sessionCookieName = "voice-rating"

// Deps are the handlers and lookups the routes are wired to.
type Deps struct {
	Experiment  *handlers.ExperimentHandler
	Researcher  *handlers.ResearcherHandler
	Researchers ResearcherLookup
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
}

func jsonErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "retryAfter": time.Until(info.ResetTime).Seconds()})
}

func newLimiter(limit uint, handler func(*gin.Context, ratelimit.Info)) gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: limit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: handler,
		KeyFunc:      keyFunc,
	})
}

func Setup(log *zap.Logger, conf *config.Config, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log, "/assets", conf.Experiment.AudioURLPrefix))

	store := cookie.NewStore([]byte(conf.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(conf.Experiment.SessionTTL.Seconds()),
	})
	router.Use(sessions.Sessions(sessionCookieName, store))

	// --- Now that sessions are initialized, other middleware can use them ---
	router.Use(NonceMiddleware())
	router.Use(CSRFProtection())
	router.Use(ContentSecurityPolicy())

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	router.Static("/assets", conf.Server.AssetsDir)
	router.Static(conf.Experiment.AudioURLPrefix, conf.Experiment.AudioDir)

	eventLimiter := newLimiter(uint(conf.Experiment.EventRateLimit), jsonErrorHandler)
	loginLimiter := newLimiter(uint(conf.Experiment.ResearcherLoginRate), errorHandler)

	router.GET("/", deps.Experiment.Start)

	experiment := router.Group("/experiment")
	{
		experiment.POST("/consent", deps.Experiment.Consent)
		experiment.POST("/demographics", deps.Experiment.Demographics)
		experiment.POST("/continue", deps.Experiment.Continue)
		experiment.POST("/trial/events", eventLimiter, deps.Experiment.TrialEvents)
		experiment.POST("/trial/submit", deps.Experiment.TrialSubmit)
	}

	researcher := router.Group("/researcher")
	researcher.Use(ResearcherLoader(log, deps.Researchers))
	{
		researcher.GET("/login", deps.Researcher.ShowLoginPage)
		researcher.POST("/login", loginLimiter, deps.Researcher.Login)
		researcher.POST("/logout", deps.Researcher.Logout)

		authorized := researcher.Group("")
		authorized.Use(ResearcherRequired())
		{
			authorized.GET("/results", deps.Researcher.ShowResults)
			authorized.GET("/export.csv", deps.Researcher.ExportCSV)
		}
	}

	return router
}
