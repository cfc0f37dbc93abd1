package cli

import (
	"errors"
	"strings"

	"voice-rating/internal/database"
	"voice-rating/internal/repository"
	"voice-rating/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newResearcherCommand(projectRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "researcher",
		Short: "Manage researcher accounts",
	}

	var email, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a researcher login",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if !utils.IsValidEmail(email) {
				return errors.New("invalid email address")
			}
			if !utils.IsComplexPassword(password) {
				return errors.New("password must be at least 8 characters with upper and lower case letters, a number and a symbol")
			}

			loader, log, err := bootstrap(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Open(loader.Config().Database, log)
			if err != nil {
				return err
			}
			researcher, err := repository.New(db).CreateResearcher(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			log.Info("Researcher created", zap.Uint("researcher_id", researcher.ID), zap.String("email", email))
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "login email")
	add.Flags().StringVar(&password, "password", "", "login password")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}
