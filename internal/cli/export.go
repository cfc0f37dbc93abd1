package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"voice-rating/internal/database"
	"voice-rating/internal/handlers"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCommand(projectRoot *string) *cobra.Command {
	var (
		outPath string
		filter  repository.ResponseFilter
		gender  string
		pitch   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored trial responses as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, log, err := bootstrap(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Open(loader.Config().Database, log)
			if err != nil {
				return err
			}
			filter.Gender = models.Gender(gender)
			filter.Pitch = models.Pitch(pitch)
			responses, err := repository.New(db).ListResponses(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("listing responses: %w", err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := handlers.WriteResponsesCSV(csv.NewWriter(out), responses); err != nil {
				return err
			}
			log.Info("Exported responses", zap.Int("count", len(responses)), zap.String("file", outPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&filter.ParticipantID, "participant", "", "only this participant")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "only this session")
	cmd.Flags().StringVar(&gender, "gender", "", "only female or male voices")
	cmd.Flags().StringVar(&pitch, "pitch", "", "only this pitch level")
	return cmd
}
