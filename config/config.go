package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config holds everything the serving process needs at startup.
type Config struct {
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`

	Model struct {
		Name       string  `yaml:"name"`
		Alias      string  `yaml:"alias"`
		Stage      string  `yaml:"stage"`
		LocalPath  string  `yaml:"local_path"`
		Threshold  float64 `yaml:"threshold"`
		WatchLocal bool    `yaml:"watch_local"`
	} `yaml:"model"`

	Registry struct {
		URI            string `yaml:"uri"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"registry"`

	Database struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"database"`

	Monitoring struct {
		ReferencePath        string  `yaml:"reference_path"`
		DriftIntervalMinutes int     `yaml:"drift_interval_minutes"`
		DriftThreshold       float64 `yaml:"drift_threshold"`
	} `yaml:"monitoring"`

	Log struct {
		Level string `yaml:"level"`
		Path  string `yaml:"path"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	var c Config
	c.Http.Port = 8000
	c.Http.TimeoutSeconds = 30
	c.Http.AllowedOrigins = []string{"*"}
	c.Model.Name = "credit-fraud"
	c.Model.Alias = "production"
	c.Model.Stage = "Production"
	c.Model.LocalPath = "models/latest.json"
	c.Model.Threshold = 0.5
	c.Registry.URI = "http://localhost:5000"
	c.Registry.TimeoutSeconds = 5
	c.Database.Enabled = true
	c.Database.Path = "./data/predictions.db"
	c.Monitoring.ReferencePath = "data/processed/reference.csv"
	c.Monitoring.DriftIntervalMinutes = 0
	c.Monitoring.DriftThreshold = 0.2
	c.Log.Level = "info"
	return c
}

// Load reads a YAML config file, then applies environment overrides.
// A missing path is not an error; defaults plus environment apply.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return c, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&c)

	if c.Model.Threshold <= 0 || c.Model.Threshold > 1 {
		return c, fmt.Errorf("model threshold %v out of (0,1]", c.Model.Threshold)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	if v, ok := os.LookupEnv("MODEL_ALIAS"); ok {
		c.Model.Alias = v
	}
	if v, ok := os.LookupEnv("MODEL_STAGE"); ok {
		c.Model.Stage = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Model.LocalPath = v
	}
	if v := os.Getenv("MODEL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Model.Threshold = f
		}
	}
	if v := os.Getenv("REGISTRY_URI"); v != "" {
		c.Registry.URI = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DATABASE_ENABLED"); v != "" {
		c.Database.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Http.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
