package cli

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"text/tabwriter"
	"time"

	"voice-rating/internal/handlers"
	"voice-rating/internal/stimulus"

	"github.com/spf13/cobra"
)

func newPlanCommand(projectRoot *string) *cobra.Command {
	var (
		seed   int64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print one randomized stimulus plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, log, err := bootstrap(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()
			conf := loader.Config().Experiment

			roster, err := loadRoster(*projectRoot, conf, log)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			plan, err := stimulus.NewPlan(roster, handlers.StimulusOptions(conf), conf.Blocks, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan.Blocks)
			}

			fmt.Fprintf(out, "seed %d: %d stimuli in %d blocks\n", seed, len(plan.Stimuli), len(plan.Blocks))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BLOCK\tTRIAL\tVOICE\tGENDER\tPITCH\tAUDIO")
			for _, block := range plan.Blocks {
				for i, s := range block.Stimuli {
					fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", block.Index, i+1, s.VoiceID, s.Gender, s.Pitch, s.AudioPath)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print blocks as JSON")
	return cmd
}
