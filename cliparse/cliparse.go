// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/mrpcast/model"
)

// Mode selects which settings Validate requires.
type Mode int

const (
	ModeRun Mode = iota
	ModeServe
)

type Config struct {
	// Server
	Port         int           `env:"PORT" envDefault:"3318"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	DatabaseType string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	RedisURL     string        `env:"REDIS_URL"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	RunKeySalt   string        `env:"RUN_KEY_SALT"`

	// Inputs
	SurveyPath  string   `env:"SURVEY_PATH"`
	FramePath   string   `env:"FRAME_PATH"`
	ResultsPath string   `env:"RESULTS_PATH"`
	RecodePath  string   `env:"RECODE_PATH"`
	TargetParty string   `env:"TARGET_PARTY"`
	Covariates  []string `env:"COVARIATES" envSeparator:","`
	// DrawFiles replays one CSV per chain from an external sampler
	// instead of running the built-in one.
	DrawFiles []string `env:"DRAW_FILES" envSeparator:","`

	// Model
	Variant           string  `env:"VARIANT" envDefault:"base"`
	Standardize       bool    `env:"STANDARDIZE" envDefault:"true"`
	ScaleToElectorate bool    `env:"SCALE_TO_ELECTORATE" envDefault:"true"`
	Chains            int     `env:"CHAINS" envDefault:"4"`
	Iterations        int     `env:"ITERATIONS" envDefault:"2000"`
	Warmup            int     `env:"WARMUP" envDefault:"1000"`
	Seed              uint64  `env:"SEED" envDefault:"1"`
	RhatThreshold     float64 `env:"RHAT_THRESHOLD" envDefault:"1.1"`

	// Post-stratification
	Draws    int     `env:"DRAWS" envDefault:"50"`
	Interval float64 `env:"INTERVAL" envDefault:"0.9"`
	NewAreas string  `env:"NEW_AREAS" envDefault:"error"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads envFile (when it exists) into the process environment and
// parses the environment into a Config. Variables already set win over
// the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BindServeFlags registers the serve flags on cmd. Current values of cfg
// become the flag defaults, so flags override env.
func BindServeFlags(cmd *cobra.Command, cfg *Config) {
	fs := cmd.Flags()
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	bindDatabaseFlags(cmd, cfg)
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for the snapshot cache (optional)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Snapshot cache TTL")
}

// BindRunFlags registers the run flags on cmd.
func BindRunFlags(cmd *cobra.Command, cfg *Config) {
	fs := cmd.Flags()
	bindDatabaseFlags(cmd, cfg)
	fs.StringVar(&cfg.SurveyPath, "survey", cfg.SurveyPath, "Survey CSV")
	fs.StringVar(&cfg.FramePath, "frame", cfg.FramePath, "Post-stratification frame CSV")
	fs.StringVar(&cfg.ResultsPath, "results", cfg.ResultsPath, "Area results CSV")
	fs.StringVar(&cfg.RecodePath, "recode", cfg.RecodePath, "Recode table YAML")
	fs.StringVar(&cfg.TargetParty, "party", cfg.TargetParty, "Target party code")
	fs.StringSliceVar(&cfg.Covariates, "covariates", cfg.Covariates, "Area covariate columns (extended model)")
	fs.StringSliceVar(&cfg.DrawFiles, "draw-files", cfg.DrawFiles, "Replay draws from CSV files, one per chain")

	fs.StringVar(&cfg.Variant, "variant", cfg.Variant, "Model variant: base, extended or both")
	fs.BoolVar(&cfg.Standardize, "standardize", cfg.Standardize, "Standardize area covariates")
	fs.BoolVar(&cfg.ScaleToElectorate, "scale", cfg.ScaleToElectorate, "Scale frame weights to electorate")
	fs.IntVar(&cfg.Chains, "chains", cfg.Chains, "Number of chains")
	fs.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Iterations per chain, warm-up included")
	fs.IntVar(&cfg.Warmup, "warmup", cfg.Warmup, "Warm-up iterations per chain")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	fs.Float64Var(&cfg.RhatThreshold, "rhat", cfg.RhatThreshold, "Convergence threshold on split R-hat")

	fs.IntVar(&cfg.Draws, "draws", cfg.Draws, "Posterior draws to post-stratify")
	fs.Float64Var(&cfg.Interval, "interval", cfg.Interval, "Central interval mass")
	fs.StringVar(&cfg.NewAreas, "new-areas", cfg.NewAreas, "Frame areas without respondents: error or population-mean")
}

func bindDatabaseFlags(cmd *cobra.Command, cfg *Config) {
	fs := cmd.Flags()
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "Database URL")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RunKeySalt, "run-key-salt", cfg.RunKeySalt, "Run key salt (prefer env)")
}

// Validate checks the settings a mode needs.
func (c Config) Validate(mode Mode) error {
	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}

	switch mode {
	case ModeServe:
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Port)
		}
		if c.DatabaseURL == "" {
			return errors.New("database URL required (use -d or DATABASE_URL env)")
		}
		if c.RunKeySalt == "" {
			return errors.New("RUN_KEY_SALT required")
		}
		return nil

	case ModeRun:
		if c.SurveyPath == "" || c.FramePath == "" || c.ResultsPath == "" {
			return errors.New("survey, frame and results files are required")
		}
		if c.TargetParty == "" && c.RecodePath == "" {
			return errors.New("target party required (use --party or a recode table)")
		}
		switch c.Variant {
		case "base", "extended", "both":
		default:
			return fmt.Errorf("unknown variant %q", c.Variant)
		}
		if c.Variant != "base" && len(c.Covariates) == 0 {
			return fmt.Errorf("variant %s needs area covariates", c.Variant)
		}
		if len(c.DrawFiles) > 0 && c.Variant == "both" {
			return errors.New("draw files replay a single variant")
		}
		if c.Chains < 1 {
			return fmt.Errorf("chains must be positive, got %d", c.Chains)
		}
		if len(c.DrawFiles) > 0 && c.Chains != len(c.DrawFiles) {
			return fmt.Errorf("%d draw files given for %d chains (set --chains %d)", len(c.DrawFiles), c.Chains, len(c.DrawFiles))
		}
		if c.Warmup < 0 || c.Warmup >= c.Iterations {
			return fmt.Errorf("warmup %d must be below iterations %d", c.Warmup, c.Iterations)
		}
		if c.Draws < 1 {
			return fmt.Errorf("draws must be positive, got %d", c.Draws)
		}
		// Only stricter bars than the default are accepted.
		if c.RhatThreshold <= 1 || c.RhatThreshold > model.DefaultRhatThreshold {
			return fmt.Errorf("rhat threshold must be in (1, %v], got %v", model.DefaultRhatThreshold, c.RhatThreshold)
		}
		if c.Interval <= 0 || c.Interval >= 1 {
			return fmt.Errorf("interval must be in (0,1), got %v", c.Interval)
		}
		if c.DatabaseURL != "" && c.RunKeySalt == "" {
			return errors.New("RUN_KEY_SALT required when runs are stored")
		}
		return nil
	}
	return fmt.Errorf("unknown mode %d", mode)
}
