package cli

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"text/tabwriter"
	"time"

	"voice-rating/internal/config"
	"voice-rating/internal/database"
	"voice-rating/internal/handlers"
	"voice-rating/internal/metrics"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/internal/sequence"
	"voice-rating/internal/simulate"
	"voice-rating/internal/stimulus"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type simulateOptions struct {
	participants int
	seed         int64
	persist      bool
	behavior     simulate.Behavior
}

func newSimulateCommand(projectRoot *string) *cobra.Command {
	opts := simulateOptions{behavior: simulate.DefaultBehavior()}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run simulated participants through full sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, log, err := bootstrap(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()
			conf := loader.Config()

			roster, err := loadRoster(*projectRoot, conf.Experiment, log)
			if err != nil {
				return err
			}

			var sink sequence.ResponseSink = &simulate.MemorySink{}
			var repo *repository.Repository
			if opts.persist {
				db, err := database.Open(conf.Database, log)
				if err != nil {
					return err
				}
				repo = repository.New(db)
				sink = repo
			}

			if opts.seed == 0 {
				opts.seed = time.Now().UnixNano()
			}
			results := runSimulation(cmd.Context(), log, conf.Experiment, roster, repo, sink, opts)
			return printSimulation(cmd, results)
		},
	}
	cmd.Flags().IntVarP(&opts.participants, "participants", "n", 10, "number of simulated participants")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "store sessions and responses in the database")
	cmd.Flags().Float64Var(&opts.behavior.SeekAhead, "seek-ahead", opts.behavior.SeekAhead, "chance per tick of seeking ahead")
	cmd.Flags().Float64Var(&opts.behavior.RateChange, "rate-change", opts.behavior.RateChange, "chance per tick of changing playback rate")
	cmd.Flags().Float64Var(&opts.behavior.ClipSeconds, "clip-seconds", opts.behavior.ClipSeconds, "simulated clip length")
	return cmd
}

type simulationResult struct {
	participant string
	status      models.SessionStatus
	responses   []models.TrialResponse
	balanced    bool
	err         error
}

// collectingSink forwards to the shared sink and keeps the participant's own
// records for the balance check.
type collectingSink struct {
	next      sequence.ResponseSink
	responses []models.TrialResponse
}

func (s *collectingSink) SaveTrialResponse(ctx context.Context, r *models.TrialResponse) error {
	s.responses = append(s.responses, *r)
	return s.next.SaveTrialResponse(ctx, r)
}

// runSimulation runs every participant in its own goroutine with its own
// random source. repo is nil unless sessions are persisted.
func runSimulation(ctx context.Context, log *zap.Logger, conf config.ExperimentConfig, roster *models.Roster, repo *repository.Repository, sink sequence.ResponseSink, opts simulateOptions) []simulationResult {
	results := make([]simulationResult, opts.participants)

	var wg sync.WaitGroup
	for i := 0; i < opts.participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = simulateOne(ctx, log, conf, roster, repo, sink, opts.behavior, opts.seed+int64(i), i)
		}(i)
	}
	wg.Wait()
	return results
}

func simulateOne(ctx context.Context, log *zap.Logger, conf config.ExperimentConfig, roster *models.Roster, repo *repository.Repository, sink sequence.ResponseSink, behavior simulate.Behavior, seed int64, i int) simulationResult {
	rng := rand.New(rand.NewSource(seed))
	participantID := fmt.Sprintf("SIM%04d", i+1)
	result := simulationResult{participant: participantID}

	plan, err := stimulus.NewPlan(roster, handlers.StimulusOptions(conf), conf.Blocks, rng)
	if err != nil {
		result.err = err
		return result
	}
	timeline := sequence.Build(plan, sequence.Options{})

	session := &models.ExperimentSession{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Status:        models.SessionStatusConsent,
		StimulusOrder: plan.StoredOrder(),
	}
	if repo != nil {
		if err := repo.CreateSession(ctx, session); err != nil {
			result.err = err
			return result
		}
	}

	collector := &collectingSink{next: sink}
	participant := simulate.NewParticipant(session.ID, participantID, behavior, conf.SeekTolerance, rng, log)
	run, err := sequence.NewRunner(participant, collector, log).Run(ctx, timeline)
	result.status = run.Status
	result.responses = collector.responses
	result.err = err

	if repo != nil {
		if err := repo.UpdateSessionPosition(ctx, session.ID, len(timeline)-1); err != nil {
			log.Error("Failed to store simulated position", zap.String("session_id", session.ID), zap.Error(err))
		}
		if err := repo.UpdateSessionStatus(ctx, session.ID, run.Status); err != nil {
			log.Error("Failed to store simulated status", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	want := plan.Assignments()
	got := stimulus.AssignmentsFromResponses(collector.responses)
	result.balanced = len(want) == len(got)
	for k, n := range want {
		if got[k] != n {
			result.balanced = false
		}
	}
	return result
}

func printSimulation(cmd *cobra.Command, results []simulationResult) error {
	out := cmd.OutOrStdout()
	var all []models.TrialResponse
	failed := 0

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTICIPANT\tSTATUS\tRESPONSES\tBALANCED\tERROR")
	for _, r := range results {
		errText := ""
		if r.err != nil {
			errText = r.err.Error()
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", r.participant, r.status, len(r.responses), r.balanced, errText)
		all = append(all, r.responses...)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GENDER\tPITCH\tN\tENTHUSIASM\tDOMINANCE")
	for _, s := range metrics.Summarize(all) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f (%.2f)\t%.2f (%.2f)\n", s.Gender, s.Pitch, s.N, s.MeanEnthusiasm, s.SDEnthusiasm, s.MeanDominance, s.SDDominance)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d simulated sessions failed", failed, len(results))
	}
	return nil
}
