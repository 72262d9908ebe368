package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	marlin "github.com/quantfish/marlin/marlin_lib"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// SolverConfig represents iterative solver configuration
type SolverConfig struct {
	PriceTolerance    float64 `yaml:"price_tolerance"`    // absolute price residual for convergence
	MaxIterations     int     `yaml:"max_iterations"`     // cap per solve phase
	VegaFloor         float64 `yaml:"vega_floor"`         // Newton hands off to bracketing below this
	VolMin            float64 `yaml:"vol_min"`            // admissible volatility range
	VolMax            float64 `yaml:"vol_max"`
	RateBound         float64 `yaml:"rate_bound"`         // |rate| and |dividend| cap
	DefaultVolGuess   float64 `yaml:"default_vol_guess"`  // Newton start without a caller guess
	BoundaryTolerance float64 `yaml:"boundary_tolerance"` // exercise boundary tolerance, relative to strike
}

// BatchConfig represents batch dispatch configuration
type BatchConfig struct {
	ParallelThreshold int `yaml:"parallel_threshold"` // batches below this stay on one goroutine
	Workers           int `yaml:"workers"`            // 0 = GOMAXPROCS
}

type Config struct {
	// Server settings
	Port string

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
	// Solver settings
	Solver SolverConfig `yaml:"solver"`
	// Batch settings
	Batch BatchConfig `yaml:"batch"`
}

type YAMLConfig struct {
	Port    string        `yaml:"port"`
	Logging LoggingConfig `yaml:"logging"`
	Solver  SolverConfig  `yaml:"solver"`
	Batch   BatchConfig   `yaml:"batch"`
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		// Default logging configuration
		Logging: LoggingConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", "marlin.log"),
		},

		// Default solver configuration
		Solver: SolverConfig{
			PriceTolerance:    getEnvFloat("SOLVER_PRICE_TOLERANCE", 1e-9),
			MaxIterations:     getEnvInt("SOLVER_MAX_ITERATIONS", 100),
			VegaFloor:         getEnvFloat("SOLVER_VEGA_FLOOR", 1e-10),
			VolMin:            getEnvFloat("SOLVER_VOL_MIN", 1e-4),
			VolMax:            getEnvFloat("SOLVER_VOL_MAX", 5.0),
			RateBound:         getEnvFloat("SOLVER_RATE_BOUND", 1.0),
			DefaultVolGuess:   getEnvFloat("SOLVER_DEFAULT_VOL_GUESS", 0.2),
			BoundaryTolerance: getEnvFloat("SOLVER_BOUNDARY_TOLERANCE", 1e-9),
		},

		// Default batch configuration
		Batch: BatchConfig{
			ParallelThreshold: getEnvInt("BATCH_PARALLEL_THRESHOLD", 256),
			Workers:           getEnvInt("BATCH_WORKERS", 0),
		},
	}

	// Try to load from YAML file; explicit YAML values win over defaults but
	// not over environment variables already set
	if yamlCfg := loadYAMLConfig(); yamlCfg != nil {
		if yamlCfg.Port != "" && os.Getenv("PORT") == "" {
			cfg.Port = yamlCfg.Port
		}

		// Logging configuration from YAML
		if yamlCfg.Logging.LogLevel != "" && os.Getenv("LOG_LEVEL") == "" {
			cfg.Logging.LogLevel = yamlCfg.Logging.LogLevel
		}
		if yamlCfg.Logging.LogFile != "" && os.Getenv("LOG_FILE") == "" {
			cfg.Logging.LogFile = yamlCfg.Logging.LogFile
		}

		// Solver configuration from YAML
		if yamlCfg.Solver.PriceTolerance > 0 && os.Getenv("SOLVER_PRICE_TOLERANCE") == "" {
			cfg.Solver.PriceTolerance = yamlCfg.Solver.PriceTolerance
		}
		if yamlCfg.Solver.MaxIterations > 0 && os.Getenv("SOLVER_MAX_ITERATIONS") == "" {
			cfg.Solver.MaxIterations = yamlCfg.Solver.MaxIterations
		}
		if yamlCfg.Solver.VegaFloor > 0 && os.Getenv("SOLVER_VEGA_FLOOR") == "" {
			cfg.Solver.VegaFloor = yamlCfg.Solver.VegaFloor
		}
		if yamlCfg.Solver.VolMin > 0 && os.Getenv("SOLVER_VOL_MIN") == "" {
			cfg.Solver.VolMin = yamlCfg.Solver.VolMin
		}
		if yamlCfg.Solver.VolMax > 0 && os.Getenv("SOLVER_VOL_MAX") == "" {
			cfg.Solver.VolMax = yamlCfg.Solver.VolMax
		}
		if yamlCfg.Solver.RateBound > 0 && os.Getenv("SOLVER_RATE_BOUND") == "" {
			cfg.Solver.RateBound = yamlCfg.Solver.RateBound
		}
		if yamlCfg.Solver.DefaultVolGuess > 0 && os.Getenv("SOLVER_DEFAULT_VOL_GUESS") == "" {
			cfg.Solver.DefaultVolGuess = yamlCfg.Solver.DefaultVolGuess
		}
		if yamlCfg.Solver.BoundaryTolerance > 0 && os.Getenv("SOLVER_BOUNDARY_TOLERANCE") == "" {
			cfg.Solver.BoundaryTolerance = yamlCfg.Solver.BoundaryTolerance
		}

		// Batch configuration from YAML
		if yamlCfg.Batch.ParallelThreshold > 0 && os.Getenv("BATCH_PARALLEL_THRESHOLD") == "" {
			cfg.Batch.ParallelThreshold = yamlCfg.Batch.ParallelThreshold
		}
		if yamlCfg.Batch.Workers > 0 && os.Getenv("BATCH_WORKERS") == "" {
			cfg.Batch.Workers = yamlCfg.Batch.Workers
		}
	}

	return cfg
}

// EngineSolverConfig converts the loaded solver settings into the engine's
// configuration type.
func (c *Config) EngineSolverConfig() marlin.SolverConfig {
	return marlin.SolverConfig{
		PriceTolerance:    c.Solver.PriceTolerance,
		MaxIterations:     c.Solver.MaxIterations,
		VegaFloor:         c.Solver.VegaFloor,
		VolMin:            c.Solver.VolMin,
		VolMax:            c.Solver.VolMax,
		RateBound:         c.Solver.RateBound,
		DefaultVolGuess:   c.Solver.DefaultVolGuess,
		BoundaryTolerance: c.Solver.BoundaryTolerance,
	}
}

// EngineBatchConfig converts the loaded batch settings into the engine's
// configuration type.
func (c *Config) EngineBatchConfig() marlin.BatchConfig {
	return marlin.BatchConfig{
		ParallelThreshold: c.Batch.ParallelThreshold,
		Workers:           c.Batch.Workers,
	}
}

func loadYAMLConfig() *YAMLConfig {
	data, err := ioutil.ReadFile("config.yaml")
	if err != nil {
		// Could not read config.yaml - silently return nil
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		// Could not parse config.yaml - silently return nil
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
