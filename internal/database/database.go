package database

import (
	"fmt"

	"voice-rating/internal/config"
	logging "voice-rating/internal/logging"
	"voice-rating/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres and runs migrations.
func Open(conf config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(conf.DSN()), &gorm.Config{
		Logger: logging.NewGormZapLogger(log, conf.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully.")

	if err := runMigrations(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func runMigrations(db *gorm.DB, log *zap.Logger) error {
	// AutoMigrate does not create the composite indexes below.
	err := db.AutoMigrate(
		&models.ExperimentSession{},
		&models.TrialResponse{},
		&models.DemographicAnswer{},
		&models.Researcher{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_trial_responses_condition ON trial_responses (gender, pitch, block);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trial_responses_session_slot ON trial_responses (session_id, block, trial_index);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status_updated ON experiment_sessions (status, updated_at);`,
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create custom index: %w", err)
		}
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}
