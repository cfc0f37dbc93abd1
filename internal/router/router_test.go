package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"voice-rating/internal/config"
	"voice-rating/internal/handlers"
	"voice-rating/internal/metrics"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/internal/trial"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// memoryStore satisfies both handler stores with just enough behaviour for
// the routing tests.
type memoryStore struct {
	sessions   map[string]*models.ExperimentSession
	researcher *models.Researcher
}

func (s *memoryStore) CreateSession(ctx context.Context, session *models.ExperimentSession) error {
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memoryStore) GetSession(ctx context.Context, id string) (*models.ExperimentSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memoryStore) UpdateSessionPosition(ctx context.Context, id string, position int) error {
	s.sessions[id].Position = position
	return nil
}

func (s *memoryStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	s.sessions[id].Status = status
	return nil
}

func (s *memoryStore) SaveTrialResponse(ctx context.Context, response *models.TrialResponse) error {
	return nil
}

func (s *memoryStore) SaveDemographics(ctx context.Context, sessionID string, answers map[string]string) error {
	return nil
}

func (s *memoryStore) GetResearcherByEmail(ctx context.Context, email string) (*models.Researcher, error) {
	if email != s.researcher.Email {
		return nil, repository.ErrNotFound
	}
	return s.researcher, nil
}

func (s *memoryStore) GetResearcherByID(ctx context.Context, id uint) (*models.Researcher, error) {
	if id != s.researcher.ID {
		return nil, repository.ErrNotFound
	}
	return s.researcher, nil
}

func (s *memoryStore) ConditionSummaries(ctx context.Context) ([]metrics.ConditionSummary, error) {
	return nil, nil
}

func (s *memoryStore) SessionCounts(ctx context.Context) (map[models.SessionStatus]int64, error) {
	return map[models.SessionStatus]int64{}, nil
}

func (s *memoryStore) ListResponses(ctx context.Context, filter repository.ResponseFilter) ([]models.TrialResponse, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("S3cret!pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := &memoryStore{
		sessions:   make(map[string]*models.ExperimentSession),
		researcher: &models.Researcher{ID: 1, Email: "lab@example.org", Password: string(hash)},
	}

	conf := &config.Config{
		Server: config.ServerConfig{SessionSecret: "test-secret", AssetsDir: t.TempDir()},
		Experiment: config.ExperimentConfig{
			AudioDir:            t.TempDir(),
			AudioURLPrefix:      "/audio",
			Blocks:              3,
			SeekTolerance:       trial.DefaultSeekTolerance,
			CompletionDisplay:   4 * time.Second,
			SessionTTL:          time.Hour,
			EventRateLimit:      600,
			ResearcherLoginRate: 5,
		},
	}
	log := zap.NewNop()
	materials := handlers.Materials{Roster: models.DefaultRoster(), ConsentHTML: "<p>consent</p>"}
	return Setup(log, conf, Deps{
		Experiment:  handlers.NewExperimentHandler(log, conf.Experiment, store, materials, trial.NewRegistry()),
		Researcher:  handlers.NewResearcherHandler(log, store),
		Researchers: store,
	})
}

type browser struct {
	engine  *gin.Engine
	cookies map[string]*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	b.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	return w
}

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func (b *browser) csrfToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfMeta.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("No CSRF token in page")
	}
	return m[1]
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSecurityHeadersOnFullPage(t *testing.T) {
	b := &browser{engine: newTestRouter(t), cookies: map[string]*http.Cookie{}}
	w := b.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-") {
		t.Errorf("Expected nonce in CSP, got %q", csp)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("Expected X-Frame-Options DENY, got %q", w.Header().Get("X-Frame-Options"))
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("Expected nosniff header")
	}
}

func TestCSRFRequiredOnPost(t *testing.T) {
	b := &browser{engine: newTestRouter(t), cookies: map[string]*http.Cookie{}}
	page := b.do(httptest.NewRequest(http.MethodGet, "/", nil))
	token := b.csrfToken(t, page.Body.String())

	w := b.do(formRequest("/experiment/consent", url.Values{"position": {"0"}, "choice": {"accept"}}))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without token, got %d", w.Code)
	}

	w = b.do(formRequest("/experiment/consent", url.Values{"position": {"0"}, "choice": {"accept"}, "_csrf": {token}}))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Welcome to the Experiment!") {
		t.Errorf("Expected instructions after consent")
	}
}

func TestResearcherPagesRequireLogin(t *testing.T) {
	b := &browser{engine: newTestRouter(t), cookies: map[string]*http.Cookie{}}

	w := b.do(httptest.NewRequest(http.MethodGet, "/researcher/results", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/researcher/login" {
		t.Fatalf("Expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	login := b.do(httptest.NewRequest(http.MethodGet, "/researcher/login", nil))
	token := b.csrfToken(t, login.Body.String())
	w = b.do(formRequest("/researcher/login", url.Values{
		"email": {"lab@example.org"}, "password": {"S3cret!pass"}, "_csrf": {token},
	}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303 after login, got %d", w.Code)
	}

	w = b.do(httptest.NewRequest(http.MethodGet, "/researcher/results", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 after login, got %d", w.Code)
	}

	b.do(formRequest("/researcher/logout", url.Values{"_csrf": {token}}))
	w = b.do(httptest.NewRequest(http.MethodGet, "/researcher/export.csv", nil))
	if w.Code != http.StatusFound {
		t.Errorf("Expected redirect after logout, got %d", w.Code)
	}
}
