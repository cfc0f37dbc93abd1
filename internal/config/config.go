package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
	AssetsDir     string `mapstructure:"assets_dir"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	LogLevel string `mapstructure:"log_level"`
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port)
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ExperimentConfig controls stimulus construction and session flow.
type ExperimentConfig struct {
	StimuliFile         string        `mapstructure:"stimuli_file"`
	DemographicsFile    string        `mapstructure:"demographics_file"`
	ConsentFile         string        `mapstructure:"consent_file"`
	AudioDir            string        `mapstructure:"audio_dir"`
	AudioURLPrefix      string        `mapstructure:"audio_url_prefix"`
	Blocks              int           `mapstructure:"blocks"`
	SeekTolerance       float64       `mapstructure:"seek_tolerance"`
	UnspedLow           bool          `mapstructure:"unsped_low"`
	UnspedLowGenders    []string      `mapstructure:"unsped_low_genders"`
	Demographics        bool          `mapstructure:"demographics"`
	CompletionDisplay   time.Duration `mapstructure:"completion_display"`
	SessionTTL          time.Duration `mapstructure:"session_ttl"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	EventRateLimit      int           `mapstructure:"event_rate_limit"`
	ResearcherLoginRate int           `mapstructure:"researcher_login_rate"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me-in-production")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.assets_dir", "assets")

	// Database defaults
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "voice-rating")
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Experiment defaults
	v.SetDefault("experiment.stimuli_file", "config/stimuli.yaml")
	v.SetDefault("experiment.demographics_file", "config/demographics.yaml")
	v.SetDefault("experiment.consent_file", "config/consent.html")
	v.SetDefault("experiment.audio_dir", "audio_files")
	v.SetDefault("experiment.audio_url_prefix", "/audio")
	v.SetDefault("experiment.blocks", 3)
	v.SetDefault("experiment.seek_tolerance", 0.05)
	v.SetDefault("experiment.unsped_low", false)
	v.SetDefault("experiment.unsped_low_genders", []string{"male"})
	v.SetDefault("experiment.demographics", false)
	v.SetDefault("experiment.completion_display", 4*time.Second)
	v.SetDefault("experiment.session_ttl", 2*time.Hour)
	v.SetDefault("experiment.sweep_interval", time.Minute)
	v.SetDefault("experiment.event_rate_limit", 600) // per minute per client
	v.SetDefault("experiment.researcher_login_rate", 5)
}

// Loader owns the viper instance so the config can be watched after the
// logger exists.
type Loader struct {
	v    *viper.Viper
	mu   sync.RWMutex
	conf *Config
}

// Load reads config/config.yaml under projectRoot, a .env file if present,
// and VOICE_RATING_* environment variables.
func Load(projectRoot string) (*Loader, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))

	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("VOICE_RATING") // e.g., VOICE_RATING_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	conf, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loader{v: v, conf: conf}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate rejects settings the experiment cannot run with.
func (c *Config) Validate() error {
	if c.Experiment.Blocks < 1 {
		return fmt.Errorf("experiment.blocks must be at least 1, got %d", c.Experiment.Blocks)
	}
	if c.Experiment.SeekTolerance < 0 {
		return fmt.Errorf("experiment.seek_tolerance must not be negative")
	}
	for _, g := range c.Experiment.UnspedLowGenders {
		if g != "male" && g != "female" {
			return fmt.Errorf("experiment.unsped_low_genders: unknown gender %q", g)
		}
	}
	return nil
}

// Config returns the current configuration snapshot.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conf
}

// Watch reloads the file on change. Invalid edits are logged and ignored.
// Components built at startup keep the snapshot they were given; only code
// that calls Config() again sees reloaded values.
func (l *Loader) Watch(log *zap.Logger) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		conf, err := decode(l.v)
		if err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		l.mu.Lock()
		l.conf = conf
		l.mu.Unlock()
	})
	l.v.WatchConfig()
}
