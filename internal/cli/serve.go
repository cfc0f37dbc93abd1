package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"voice-rating/internal/database"
	"voice-rating/internal/handlers"
	"voice-rating/internal/repository"
	"voice-rating/internal/router"
	"voice-rating/internal/services"
	"voice-rating/internal/trial"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(projectRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the experiment web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, log, err := bootstrap(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()
			loader.Watch(log)
			conf := loader.Config()

			db, err := database.Open(conf.Database, log)
			if err != nil {
				return err
			}
			repo := repository.New(db)

			materials, err := loadMaterials(*projectRoot, conf.Experiment, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := trial.NewRegistry()
			services.NewScheduler(log, repo, registry, conf.Experiment.SessionTTL, conf.Experiment.SweepInterval).Start(ctx)

			r := router.Setup(log, conf, router.Deps{
				Experiment:  handlers.NewExperimentHandler(log, conf.Experiment, repo, materials, registry),
				Researcher:  handlers.NewResearcherHandler(log, repo),
				Researchers: repo,
			})

			srv := &http.Server{
				Addr:              ":" + conf.Server.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error("Server shutdown failed", zap.Error(err))
				}
			}()

			log.Info("Server listening on http://localhost:" + conf.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Failed to run server", zap.Error(err))
				return err
			}
			log.Info("Server stopped")
			return nil
		},
	}
}
