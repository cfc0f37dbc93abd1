// Package cli wires the voice-rating commands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voice-rating/internal/config"
	"voice-rating/internal/handlers"
	logger "voice-rating/internal/logging"
	"voice-rating/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var projectRoot string

	root := &cobra.Command{
		Use:           "voice-rating",
		Short:         "Voice pitch rating experiment server and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root containing config/")

	root.AddCommand(
		newServeCommand(&projectRoot),
		newPlanCommand(&projectRoot),
		newSimulateCommand(&projectRoot),
		newExportCommand(&projectRoot),
		newResearcherCommand(&projectRoot),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// bootstrap loads configuration and builds the logger every command uses.
func bootstrap(projectRoot string) (*config.Loader, *zap.Logger, error) {
	loader, err := config.Load(projectRoot)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.Init(projectRoot, loader.Config().Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return loader, log, nil
}

func resolve(projectRoot, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

// loadRoster reads the stimuli file, falling back to the built-in 12-voice
// roster when none is configured on disk.
func loadRoster(projectRoot string, conf config.ExperimentConfig, log *zap.Logger) (*models.Roster, error) {
	path := resolve(projectRoot, conf.StimuliFile)
	roster, err := models.LoadRoster(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("Stimuli file not found, using default roster", zap.String("path", path))
		return models.DefaultRoster(), nil
	}
	return roster, err
}

// loadMaterials reads everything the participant flow renders.
func loadMaterials(projectRoot string, conf config.ExperimentConfig, log *zap.Logger) (handlers.Materials, error) {
	roster, err := loadRoster(projectRoot, conf, log)
	if err != nil {
		return handlers.Materials{}, err
	}

	consent, err := os.ReadFile(resolve(projectRoot, conf.ConsentFile))
	if err != nil {
		return handlers.Materials{}, fmt.Errorf("failed to read consent file: %w", err)
	}

	materials := handlers.Materials{Roster: roster, ConsentHTML: string(consent)}
	if conf.Demographics {
		questionnaire, err := models.LoadQuestionnaire(resolve(projectRoot, conf.DemographicsFile))
		if err != nil {
			return handlers.Materials{}, err
		}
		materials.Questionnaire = questionnaire
	}
	return materials, nil
}
