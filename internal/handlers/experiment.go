package handlers

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"voice-rating/internal/config"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/internal/sequence"
	"voice-rating/internal/stimulus"
	"voice-rating/internal/trial"
	"voice-rating/internal/utils"
	"voice-rating/views"

	"github.com/a-h/templ"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExperimentSessionKey holds the participant's session id in the cookie.
const ExperimentSessionKey = "experimentSessionID"

var errNoSession = errors.New("no experiment session in cookie")

// ExperimentStore is the persistence the participant flow needs.
type ExperimentStore interface {
	CreateSession(ctx context.Context, session *models.ExperimentSession) error
	GetSession(ctx context.Context, id string) (*models.ExperimentSession, error)
	UpdateSessionPosition(ctx context.Context, id string, position int) error
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	SaveTrialResponse(ctx context.Context, response *models.TrialResponse) error
	SaveDemographics(ctx context.Context, sessionID string, answers map[string]string) error
}

// Materials are the study files loaded at startup.
type Materials struct {
	Roster        *models.Roster
	Questionnaire *models.Questionnaire
	ConsentHTML   string
}

type ExperimentHandler struct {
	log       *zap.Logger
	conf      config.ExperimentConfig
	store     ExperimentStore
	materials Materials
	trials    *trial.Registry

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewExperimentHandler(log *zap.Logger, conf config.ExperimentConfig, store ExperimentStore, materials Materials, trials *trial.Registry) *ExperimentHandler {
	return &ExperimentHandler{
		log:       log,
		conf:      conf,
		store:     store,
		materials: materials,
		trials:    trials,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// participantSession is a stored session together with its rebuilt timeline.
type participantSession struct {
	record   *models.ExperimentSession
	timeline sequence.Timeline
}

func (ps *participantSession) position() int { return ps.record.Position }

// StimulusOptions converts the experiment config into builder options.
func StimulusOptions(conf config.ExperimentConfig) stimulus.Options {
	genders := make([]models.Gender, 0, len(conf.UnspedLowGenders))
	for _, g := range conf.UnspedLowGenders {
		genders = append(genders, models.Gender(g))
	}
	return stimulus.Options{
		UnspedLow:        conf.UnspedLow,
		UnspedLowGenders: genders,
		AudioPrefix:      conf.AudioURLPrefix,
	}
}

func (h *ExperimentHandler) timelineOptions() sequence.Options {
	return sequence.Options{Demographics: h.conf.Demographics && h.materials.Questionnaire != nil}
}

func (h *ExperimentHandler) questions() []models.Question {
	if h.materials.Questionnaire == nil {
		return nil
	}
	return h.materials.Questionnaire.Questions
}

// load restores the session named in the cookie. The timeline is rebuilt from
// the stored stimulus order, so a resumed session sees the same blocks.
func (h *ExperimentHandler) load(c *gin.Context) (*participantSession, error) {
	id, _ := sessions.Default(c).Get(ExperimentSessionKey).(string)
	if id == "" {
		return nil, errNoSession
	}
	record, err := h.store.GetSession(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	plan, err := stimulus.PlanFromOrder(h.materials.Roster, StimulusOptions(h.conf), h.conf.Blocks, record.StimulusOrder)
	if err != nil {
		return nil, err
	}
	return &participantSession{record: record, timeline: sequence.Build(plan, h.timelineOptions())}, nil
}

func (h *ExperimentHandler) create(c *gin.Context) (*participantSession, error) {
	participantID := utils.SanitizeParticipantID(c.Query("PID"))
	if participantID == "" {
		var err error
		if participantID, err = utils.NewParticipantID(); err != nil {
			return nil, err
		}
	}

	h.rngMu.Lock()
	plan, err := stimulus.NewPlan(h.materials.Roster, StimulusOptions(h.conf), h.conf.Blocks, h.rng)
	h.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	record := &models.ExperimentSession{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Status:        models.SessionStatusConsent,
		StimulusOrder: plan.StoredOrder(),
	}
	if err := h.store.CreateSession(c.Request.Context(), record); err != nil {
		return nil, err
	}

	session := sessions.Default(c)
	session.Set(ExperimentSessionKey, record.ID)
	if err := session.Save(); err != nil {
		return nil, err
	}

	h.log.Info("Experiment session started",
		zap.String("session_id", record.ID),
		zap.String("participant_id", participantID),
		zap.Int("stimuli", len(plan.Stimuli)),
		zap.Int("blocks", len(plan.Blocks)),
	)
	return &participantSession{record: record, timeline: sequence.Build(plan, h.timelineOptions())}, nil
}

// Start resumes the session in the cookie or opens a new one. A PID that
// differs from the stored participant starts a fresh session.
func (h *ExperimentHandler) Start(c *gin.Context) {
	ps, err := h.load(c)
	if err == nil {
		pid := utils.SanitizeParticipantID(c.Query("PID"))
		if pid == "" || pid == ps.record.ParticipantID {
			h.renderCurrent(c, http.StatusOK, ps)
			return
		}
	} else if !errors.Is(err, errNoSession) && !errors.Is(err, repository.ErrNotFound) {
		h.log.Error("Failed to resume experiment session", zap.Error(err))
		serverError(c, "Could not resume the experiment")
		return
	}

	ps, err = h.create(c)
	if err != nil {
		h.log.Error("Failed to start experiment session", zap.Error(err))
		serverError(c, "Could not start the experiment")
		return
	}
	h.renderCurrent(c, http.StatusOK, ps)
}

func (h *ExperimentHandler) newTrial(unit sequence.Unit) func() *trial.Trial {
	return func() *trial.Trial {
		return trial.New(*unit.Stimulus, unit.Block, unit.TrialIndex, unit.TotalBlocks,
			trial.WithSeekTolerance(h.conf.SeekTolerance))
	}
}

// renderCurrent shows whatever unit the session is positioned on.
func (h *ExperimentHandler) renderCurrent(c *gin.Context, status int, ps *participantSession) {
	switch ps.record.Status {
	case models.SessionStatusDeclined:
		render(c, h.log, status, pageTitle, views.Declined())
		return
	case models.SessionStatusAbandoned:
		render(c, h.log, status, pageTitle, views.Expired())
		return
	}

	pos := ps.position()
	unit, err := ps.timeline.At(pos)
	if err != nil {
		h.log.Error("Session position outside its timeline", zap.String("session_id", ps.record.ID), zap.Error(err))
		serverError(c, "Could not load the experiment")
		return
	}

	page := views.UnitPage{
		Unit:      unit,
		Position:  pos,
		Progress:  ps.timeline.Progress(pos),
		CSRFToken: c.GetString(csrfTokenContextKey),
	}

	var component templ.Component
	switch unit.Kind {
	case sequence.UnitConsent:
		component = views.Consent(page, h.materials.ConsentHTML)
	case sequence.UnitDemographics:
		component = views.Demographics(page, h.questions(), "")
	case sequence.UnitInstructions:
		component = views.Instructions(page)
	case sequence.UnitBlockStart:
		component = views.BlockStart(page)
	case sequence.UnitBreak:
		component = views.Break(page)
	case sequence.UnitTrial:
		unlocked := false
		_ = h.trials.With(ps.record.ID, pos, h.newTrial(unit), func(t *trial.Trial) error {
			unlocked = t.Unlocked()
			return nil
		})
		component = views.Trial(page, unit.Stimulus.AudioPath, unlocked)
	case sequence.UnitCompletion:
		component = views.Completion(h.conf.CompletionDisplay.Milliseconds())
	}
	render(c, h.log, status, pageTitle, component)
}

// begin is the common prologue of the form posts: it loads the session and
// checks that the post targets the current unit. It writes the response
// itself and returns false when the handler should stop.
func (h *ExperimentHandler) begin(c *gin.Context, kinds ...sequence.UnitKind) (*participantSession, sequence.Unit, bool) {
	ps, err := h.load(c)
	if err != nil {
		if errors.Is(err, errNoSession) || errors.Is(err, repository.ErrNotFound) {
			if isHTMX(c) {
				c.Header("HX-Redirect", "/")
				c.AbortWithStatus(http.StatusUnauthorized)
			} else {
				c.Redirect(http.StatusSeeOther, "/")
			}
			return nil, sequence.Unit{}, false
		}
		h.log.Error("Failed to load experiment session", zap.Error(err))
		serverError(c, "Could not load the experiment")
		return nil, sequence.Unit{}, false
	}

	if ps.record.Status.IsTerminal() {
		h.renderCurrent(c, http.StatusOK, ps)
		return nil, sequence.Unit{}, false
	}

	// A repeated key press or double click re-posts an old position.
	if c.PostForm("position") != strconv.Itoa(ps.position()) {
		h.log.Debug("Ignoring stale submission",
			zap.String("session_id", ps.record.ID),
			zap.String("posted", c.PostForm("position")),
			zap.Int("current", ps.position()),
		)
		h.renderCurrent(c, http.StatusOK, ps)
		return nil, sequence.Unit{}, false
	}

	unit, err := ps.timeline.Expect(ps.position(), kinds...)
	if err != nil {
		h.log.Warn("Action does not match current unit", zap.String("session_id", ps.record.ID), zap.Error(err))
		c.Header("HX-Retarget", "#content")
		c.Header("HX-Reswap", "innerHTML")
		h.renderCurrent(c, http.StatusConflict, ps)
		return nil, sequence.Unit{}, false
	}
	return ps, unit, true
}

// advance moves the session one unit forward and renders it.
func (h *ExperimentHandler) advance(c *gin.Context, ps *participantSession) {
	ctx := c.Request.Context()
	next := ps.timeline.Next(ps.position())
	if err := h.store.UpdateSessionPosition(ctx, ps.record.ID, next); err != nil {
		h.log.Error("Failed to update session position", zap.String("session_id", ps.record.ID), zap.Int("position", next), zap.Error(err))
		serverError(c, "Could not save progress")
		return
	}
	ps.record.Position = next
	// The finished unit's trial, if any, is kept until the move is stored so
	// a retried submit finds it already submitted.
	h.trials.Remove(ps.record.ID)

	if ps.timeline[next].Kind == sequence.UnitCompletion && ps.record.Status != models.SessionStatusCompleted {
		if err := h.store.UpdateSessionStatus(ctx, ps.record.ID, models.SessionStatusCompleted); err != nil {
			h.log.Error("Failed to mark session completed", zap.String("session_id", ps.record.ID), zap.Error(err))
		}
		ps.record.Status = models.SessionStatusCompleted
		h.log.Info("Experiment session completed",
			zap.String("session_id", ps.record.ID),
			zap.String("participant_id", ps.record.ParticipantID),
		)
	}
	h.renderCurrent(c, http.StatusOK, ps)
}

// Consent records the participant's choice on the consent screen.
func (h *ExperimentHandler) Consent(c *gin.Context) {
	ps, _, ok := h.begin(c, sequence.UnitConsent)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	switch c.PostForm("choice") {
	case "accept":
		if err := h.store.UpdateSessionStatus(ctx, ps.record.ID, models.SessionStatusActive); err != nil {
			h.log.Error("Failed to record consent", zap.String("session_id", ps.record.ID), zap.Error(err))
			serverError(c, "Could not record consent")
			return
		}
		ps.record.Status = models.SessionStatusActive
		h.advance(c, ps)
	case "decline":
		if err := h.store.UpdateSessionStatus(ctx, ps.record.ID, models.SessionStatusDeclined); err != nil {
			h.log.Error("Failed to record declined consent", zap.String("session_id", ps.record.ID), zap.Error(err))
			serverError(c, "Could not record your choice")
			return
		}
		ps.record.Status = models.SessionStatusDeclined
		h.log.Info("Participant declined consent", zap.String("session_id", ps.record.ID))
		h.renderCurrent(c, http.StatusOK, ps)
	default:
		c.String(http.StatusBadRequest, "Invalid choice")
	}
}

// Demographics validates and stores the optional questionnaire.
func (h *ExperimentHandler) Demographics(c *gin.Context) {
	ps, unit, ok := h.begin(c, sequence.UnitDemographics)
	if !ok {
		return
	}

	answers, problem := h.collectAnswers(c)
	if problem != "" {
		page := views.UnitPage{
			Unit:      unit,
			Position:  ps.position(),
			Progress:  ps.timeline.Progress(ps.position()),
			CSRFToken: c.GetString(csrfTokenContextKey),
		}
		c.Header("HX-Retarget", "#content")
		c.Header("HX-Reswap", "innerHTML")
		render(c, h.log, http.StatusUnprocessableEntity, pageTitle, views.Demographics(page, h.questions(), problem))
		return
	}

	if err := h.store.SaveDemographics(c.Request.Context(), ps.record.ID, answers); err != nil {
		fields := []zap.Field{zap.String("session_id", ps.record.ID), zap.Error(err)}
		for id, value := range answers {
			fields = append(fields, zap.String("q_"+id, value))
		}
		h.log.Error("Failed to save demographics", fields...)
	}
	h.advance(c, ps)
}

// collectAnswers reads q_<id> fields. The second result is a message for the
// participant when an answer is missing or invalid.
func (h *ExperimentHandler) collectAnswers(c *gin.Context) (map[string]string, string) {
	answers := make(map[string]string)
	for _, q := range h.questions() {
		value := strings.TrimSpace(c.PostForm("q_" + q.ID))
		if value == "" {
			if q.Required {
				return nil, "Please answer: " + q.Title
			}
			continue
		}

		switch q.Type {
		case "radio", "dropdown":
			if !q.HasOption(value) {
				return nil, "Please choose one of the listed options for: " + q.Title
			}
		case "number":
			n, err := strconv.Atoi(value)
			if err != nil || (q.Min != nil && n < *q.Min) || (q.Max != nil && n > *q.Max) {
				return nil, "Please enter a valid number for: " + q.Title
			}
		default:
			if q.MaxLength > 0 && utf8.RuneCountInString(value) > q.MaxLength {
				return nil, "Your answer is too long for: " + q.Title
			}
		}
		answers[q.ID] = value
	}
	return answers, ""
}

// Continue advances past instruction, block and break screens.
func (h *ExperimentHandler) Continue(c *gin.Context) {
	ps, _, ok := h.begin(c, sequence.UnitInstructions, sequence.UnitBlockStart, sequence.UnitBreak)
	if !ok {
		return
	}
	h.advance(c, ps)
}
