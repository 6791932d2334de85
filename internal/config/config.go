// Package config loads service settings from the environment and the
// optional YAML analysis file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zombar/geoanalyzer/internal/analyzer"
)

// Config holds process-level settings.
type Config struct {
	Port               string
	DBDSN              string
	RedisAddr          string
	OllamaURL          string
	OllamaModel        string
	UseOllama          bool
	WorkerConcurrency  int
	AnalysisConfigPath string
	ServiceName        string
}

// Load reads .env.development or .env when present and then the
// environment. Missing dotenv files are not an error.
func Load() Config {
	if err := godotenv.Load(".env.development"); err != nil {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "error", err)
		}
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		DBDSN:              getEnv("DB_DSN", "geoanalyzer.db"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3.2"),
		UseOllama:          getEnvBool("USE_OLLAMA", false),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 5),
		AnalysisConfigPath: getEnv("ANALYSIS_CONFIG", ""),
		ServiceName:        getEnv("SERVICE_NAME", "geoanalyzer"),
	}
}

// AnalysisFile is the YAML layout of the analysis config file:
//
//	profile: authority
//	analysis:
//	  min_word_count: 150
//	keywords:
//	  authority: [licensed, certified]
type AnalysisFile struct {
	Profile  string              `yaml:"profile"`
	Analysis yaml.Node           `yaml:"analysis"`
	Keywords map[string][]string `yaml:"keywords"`
}

// LoadAnalysis reads an analysis config file. Fields absent from the
// analysis section keep the selected profile's defaults. The returned
// options carry a keyword set when the file lists keywords for the active
// profile.
func LoadAnalysis(path string) (analyzer.Config, []analyzer.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analyzer.Config{}, nil, fmt.Errorf("failed to read analysis config: %w", err)
	}
	return ParseAnalysis(data)
}

// ParseAnalysis decodes the YAML analysis config held in data.
func ParseAnalysis(data []byte) (analyzer.Config, []analyzer.Option, error) {
	var file AnalysisFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return analyzer.Config{}, nil, fmt.Errorf("failed to parse analysis config: %w", err)
	}

	var cfg analyzer.Config
	switch strings.ToLower(strings.TrimSpace(file.Profile)) {
	case "", analyzer.ProfileGEO:
		cfg = analyzer.DefaultConfig()
	case analyzer.ProfileAuthority:
		cfg = analyzer.AuthorityConfig()
	default:
		return analyzer.Config{}, nil, &analyzer.ConfigurationError{
			Field:   "profile",
			Message: fmt.Sprintf("unknown profile %q", file.Profile),
		}
	}

	if !file.Analysis.IsZero() {
		if err := file.Analysis.Decode(&cfg); err != nil {
			return analyzer.Config{}, nil, fmt.Errorf("failed to decode analysis section: %w", err)
		}
	}

	var opts []analyzer.Option
	if kws, ok := file.Keywords[cfg.Profile]; ok {
		set, err := analyzer.NewKeywordSet(cfg.Profile, kws...)
		if err != nil {
			return analyzer.Config{}, nil, err
		}
		opts = append(opts, analyzer.WithKeywordSet(set))
	}

	return cfg, opts, nil
}

// NewAnalyzer builds an analyzer from the file at path, or from the GEO
// defaults when path is empty.
func NewAnalyzer(path string) (*analyzer.Analyzer, error) {
	if path == "" {
		return analyzer.New(analyzer.DefaultConfig())
	}
	cfg, opts, err := LoadAnalysis(path)
	if err != nil {
		return nil, err
	}
	return analyzer.New(cfg, opts...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer environment variable", "key", key, "value", value)
		return defaultValue
	}
	return n
}
