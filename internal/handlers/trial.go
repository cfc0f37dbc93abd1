package handlers

import (
	"errors"
	"net/http"

	logger "voice-rating/internal/logging"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/internal/sequence"
	"voice-rating/internal/trial"
	"voice-rating/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// eventBatch is what the audio element script posts: the media events seen
// since the last flush, for the trial at Position.
type eventBatch struct {
	Position int           `json:"position"`
	Events   []trial.Event `json:"events" binding:"required,min=1,max=256"`
}

// TrialEvents applies reported media events to the current trial and returns
// the corrections the client must make.
func (h *ExperimentHandler) TrialEvents(c *gin.Context) {
	ps, err := h.load(c)
	if err != nil {
		if errors.Is(err, errNoSession) || errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
			return
		}
		h.log.Error("Failed to load experiment session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	if ps.record.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not active"})
		return
	}

	var batch eventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event batch"})
		return
	}

	if batch.Position != ps.position() {
		c.JSON(http.StatusConflict, gin.H{"error": "stale trial", "position": ps.position()})
		return
	}
	unit, err := ps.timeline.Expect(ps.position(), sequence.UnitTrial)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "position": ps.position()})
		return
	}

	var feedback trial.Feedback
	var unlockedNow bool
	err = h.trials.With(ps.record.ID, ps.position(), h.newTrial(unit), func(t *trial.Trial) error {
		wasUnlocked := t.Unlocked()
		corrected := false
		for _, ev := range batch.Events {
			fb, err := t.Apply(ev)
			if err != nil {
				return err
			}
			corrected = corrected || fb.Corrected
			feedback = fb
		}
		feedback.Corrected = corrected
		unlockedNow = !wasUnlocked && t.Unlocked()
		return nil
	})
	if errors.Is(err, trial.ErrUnknownEvent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("Failed to apply trial events", zap.String("session_id", ps.record.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not apply events"})
		return
	}

	if unlockedNow {
		h.log.Debug("Trial unlocked",
			zap.String("session_id", ps.record.ID),
			zap.Int("block", unit.Block),
			zap.Int("trial_index", unit.TrialIndex),
		)
	}
	c.JSON(http.StatusOK, feedback)
}

// TrialSubmit accepts the two ratings once the trial is unlocked.
func (h *ExperimentHandler) TrialSubmit(c *gin.Context) {
	ps, unit, ok := h.begin(c, sequence.UnitTrial)
	if !ok {
		return
	}

	ratings := trial.Ratings{
		Enthusiasm: utils.ParseRating(c.PostForm("enthusiasm")),
		Dominance:  utils.ParseRating(c.PostForm("dominance")),
	}

	var response *models.TrialResponse
	err := h.trials.With(ps.record.ID, ps.position(), h.newTrial(unit), func(t *trial.Trial) error {
		r, err := t.Submit(ps.record.ID, ps.record.ParticipantID, ratings)
		response = r
		return err
	})
	switch {
	case errors.Is(err, trial.ErrLocked):
		renderAlert(c, h.log, http.StatusConflict, "#trial-alert", "Please listen to the entire audio clip before answering.")
		return
	case errors.Is(err, trial.ErrInvalidRating):
		renderAlert(c, h.log, http.StatusUnprocessableEntity, "#trial-alert", "Please answer both questions with a rating from 1 to 7.")
		return
	case errors.Is(err, trial.ErrAlreadySubmitted):
		// The response went out already; only the move forward was lost.
	case err != nil:
		h.log.Error("Failed to submit trial", zap.String("session_id", ps.record.ID), zap.Error(err))
		serverError(c, "Could not submit your answers")
		return
	}

	if response != nil {
		if err := h.store.SaveTrialResponse(c.Request.Context(), response); err != nil {
			h.log.Error("Failed to save trial response", append(logger.ResponseFields(response), zap.Error(err))...)
		} else {
			h.log.Info("Trial response recorded", logger.ResponseFields(response)...)
		}
	}

	h.advance(c, ps)
}
