package sequence

import (
	"context"
	"fmt"

	logger "voice-rating/internal/logging"
	"voice-rating/internal/models"

	"go.uber.org/zap"
)

// Outcome is what presenting one unit produced.
type Outcome struct {
	// Consented is only meaningful for the consent unit.
	Consented bool
	// Response is set for trial units and nil everywhere else.
	Response *models.TrialResponse
}

// Presenter shows a unit and blocks until the participant completes it.
type Presenter interface {
	Present(ctx context.Context, unit Unit) (Outcome, error)
}

// ResponseSink receives each completed trial's record.
type ResponseSink interface {
	SaveTrialResponse(ctx context.Context, response *models.TrialResponse) error
}

// Result summarizes a finished run.
type Result struct {
	Status    models.SessionStatus
	Presented int
	Responses int
}

// Runner presents a timeline one unit at a time.
type Runner struct {
	presenter Presenter
	sink      ResponseSink
	log       *zap.Logger
}

func NewRunner(presenter Presenter, sink ResponseSink, log *zap.Logger) *Runner {
	return &Runner{presenter: presenter, sink: sink, log: log}
}

// Run drives the timeline to completion. A declined consent ends the run with
// no trials presented; cancelling ctx abandons it without emitting the
// in-flight trial's response.
func (r *Runner) Run(ctx context.Context, timeline Timeline) (Result, error) {
	result := Result{Status: models.SessionStatusConsent}

	for _, unit := range timeline {
		if err := ctx.Err(); err != nil {
			result.Status = models.SessionStatusAbandoned
			return result, err
		}

		outcome, err := r.presenter.Present(ctx, unit)
		if err != nil {
			result.Status = models.SessionStatusAbandoned
			return result, fmt.Errorf("presenting %s unit: %w", unit.Kind, err)
		}
		// An outcome that arrives after cancellation is dropped.
		if err := ctx.Err(); err != nil {
			result.Status = models.SessionStatusAbandoned
			return result, err
		}
		result.Presented++

		switch unit.Kind {
		case UnitConsent:
			if !outcome.Consented {
				result.Status = models.SessionStatusDeclined
				r.log.Info("Participant declined consent")
				return result, nil
			}
			result.Status = models.SessionStatusActive
		case UnitTrial:
			if outcome.Response == nil {
				result.Status = models.SessionStatusAbandoned
				return result, fmt.Errorf("trial %d of block %d completed without a response", unit.TrialIndex, unit.Block)
			}
			// Fire-and-forget: the record is logged in full if the save fails.
			if err := r.sink.SaveTrialResponse(ctx, outcome.Response); err != nil {
				r.log.Error("Failed to save trial response", append(logger.ResponseFields(outcome.Response), zap.Error(err))...)
			}
			result.Responses++
		case UnitCompletion:
			result.Status = models.SessionStatusCompleted
		}
	}

	return result, nil
}
