package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

type fileConfig struct {
	HTTPAddr          string   `yaml:"http_addr"`
	StoragePath       string   `yaml:"storage_path"`
	PromptFile        string   `yaml:"prompt_file"`
	MaxIterations     int      `yaml:"max_iterations"`
	HistoryWindow     int      `yaml:"history_window"`
	ToolOutputLimit   int      `yaml:"tool_output_limit"`
	RequestTimeout    string   `yaml:"request_timeout"`
	TurnTimeout       string   `yaml:"turn_timeout"`
	LLMBaseURL        string   `yaml:"llm_base_url"`
	LLMModel          string   `yaml:"llm_model"`
	LLMTemperature    float64  `yaml:"llm_temperature"`
	LLMMaxTokens      int      `yaml:"llm_max_tokens"`
	LLMMaxRetries     int      `yaml:"llm_max_retries"`
	ModerationEnabled *bool    `yaml:"moderation_enabled"`
	ModerationBaseURL string   `yaml:"moderation_base_url"`
	ModerationModel   string   `yaml:"moderation_model"`
	EmbeddingBaseURL  string   `yaml:"embedding_base_url"`
	EmbeddingModel    string   `yaml:"embedding_model"`
	IndexPath         string   `yaml:"index_path"`
	SearchTopK        int      `yaml:"search_top_k"`
	TrackerBaseURL    string   `yaml:"tracker_base_url"`
	TrackerOwner      string   `yaml:"tracker_owner"`
	TrackerRepo       string   `yaml:"tracker_repo"`
	ServiceLogin      string   `yaml:"service_login"`
	BugLabels         []string `yaml:"bug_labels"`
	ListingLabel      string   `yaml:"listing_label"`
	HandoffWebhookURL string   `yaml:"handoff_webhook_url"`
	SiteBaseURL       string   `yaml:"site_base_url"`
}

type Config struct {
	HTTPAddr          string
	StoragePath       string
	PromptFile        string
	MaxIterations     int
	HistoryWindow     int
	ToolOutputLimit   int
	RequestTimeout    time.Duration
	TurnTimeout       time.Duration
	LLMBaseURL        string
	LLMAPIKey         string
	LLMModel          string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMMaxRetries     int
	ModerationEnabled bool
	ModerationBaseURL string
	ModerationModel   string
	EmbeddingBaseURL  string
	EmbeddingModel    string
	IndexPath         string
	SearchTopK        int
	TrackerBaseURL    string
	TrackerToken      string
	TrackerOwner      string
	TrackerRepo       string
	ServiceLogin      string
	BugLabels         []string
	ListingLabel      string
	HandoffWebhookURL string
	SiteBaseURL       string
}

func Load(configPath string) (Config, error) {
	_ = godotenv.Load()
	cfg := defaultConfig()
	if strings.TrimSpace(configPath) != "" {
		if err := applyYAMLConfig(&cfg, configPath); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := normalizeAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	cwd, _ := os.Getwd()
	return Config{
		HTTPAddr:          ":8090",
		StoragePath:       filepath.Join(cwd, "data", "support-agent.db"),
		MaxIterations:     5,
		HistoryWindow:     40,
		ToolOutputLimit:   8000,
		RequestTimeout:    60 * time.Second,
		TurnTimeout:       120 * time.Second,
		LLMBaseURL:        "https://api.openai.com",
		LLMModel:          "gpt-4o-mini",
		LLMTemperature:    0.3,
		LLMMaxTokens:      1200,
		LLMMaxRetries:     2,
		ModerationEnabled: true,
		ModerationBaseURL: "https://api.openai.com",
		ModerationModel:   "omni-moderation-latest",
		EmbeddingBaseURL:  "https://api.openai.com",
		EmbeddingModel:    "text-embedding-3-small",
		IndexPath:         filepath.Join(cwd, "data", "site-index.jsonl"),
		SearchTopK:        5,
		TrackerBaseURL:    "https://api.github.com",
		ServiceLogin:      "community-support-bot",
		BugLabels:         []string{"bug", "support-agent"},
		ListingLabel:      "community-listing",
		SiteBaseURL:       "https://community.example.org",
	}
}

func applyYAMLConfig(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setStr := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setStr(&cfg.HTTPAddr, fc.HTTPAddr)
	setStr(&cfg.StoragePath, fc.StoragePath)
	setStr(&cfg.PromptFile, fc.PromptFile)
	setStr(&cfg.LLMBaseURL, fc.LLMBaseURL)
	setStr(&cfg.LLMModel, fc.LLMModel)
	setStr(&cfg.ModerationBaseURL, fc.ModerationBaseURL)
	setStr(&cfg.ModerationModel, fc.ModerationModel)
	setStr(&cfg.EmbeddingBaseURL, fc.EmbeddingBaseURL)
	setStr(&cfg.EmbeddingModel, fc.EmbeddingModel)
	setStr(&cfg.IndexPath, fc.IndexPath)
	setStr(&cfg.TrackerBaseURL, fc.TrackerBaseURL)
	setStr(&cfg.TrackerOwner, fc.TrackerOwner)
	setStr(&cfg.TrackerRepo, fc.TrackerRepo)
	setStr(&cfg.ServiceLogin, fc.ServiceLogin)
	setStr(&cfg.ListingLabel, fc.ListingLabel)
	setStr(&cfg.HandoffWebhookURL, fc.HandoffWebhookURL)
	setStr(&cfg.SiteBaseURL, fc.SiteBaseURL)

	if fc.MaxIterations > 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	if fc.HistoryWindow > 0 {
		cfg.HistoryWindow = fc.HistoryWindow
	}
	if fc.ToolOutputLimit > 0 {
		cfg.ToolOutputLimit = fc.ToolOutputLimit
	}
	if fc.LLMTemperature > 0 {
		cfg.LLMTemperature = fc.LLMTemperature
	}
	if fc.LLMMaxTokens > 0 {
		cfg.LLMMaxTokens = fc.LLMMaxTokens
	}
	if fc.LLMMaxRetries > 0 {
		cfg.LLMMaxRetries = fc.LLMMaxRetries
	}
	if fc.SearchTopK > 0 {
		cfg.SearchTopK = fc.SearchTopK
	}
	if fc.ModerationEnabled != nil {
		cfg.ModerationEnabled = *fc.ModerationEnabled
	}
	if len(fc.BugLabels) > 0 {
		cfg.BugLabels = fc.BugLabels
	}
	if d, err := parseOptionalDuration(fc.RequestTimeout); err != nil {
		return err
	} else if d > 0 {
		cfg.RequestTimeout = d
	}
	if d, err := parseOptionalDuration(fc.TurnTimeout); err != nil {
		return err
	} else if d > 0 {
		cfg.TurnTimeout = d
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		cfg.LLMAPIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLMModel = v
	}
	if v := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); v != "" {
		cfg.TrackerToken = v
	}
	if v := strings.TrimSpace(os.Getenv("TRACKER_OWNER")); v != "" {
		cfg.TrackerOwner = v
	}
	if v := strings.TrimSpace(os.Getenv("TRACKER_REPO")); v != "" {
		cfg.TrackerRepo = v
	}
	if v := strings.TrimSpace(os.Getenv("HANDOFF_WEBHOOK_URL")); v != "" {
		cfg.HandoffWebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STORAGE_PATH")); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv("INDEX_PATH")); v != "" {
		cfg.IndexPath = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("MODERATION_ENABLED"))); v != "" {
		cfg.ModerationEnabled = v == "1" || v == "true" || v == "yes" || v == "on"
	}
	if v := strings.TrimSpace(os.Getenv("MAX_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
		}
	}
}

func normalizeAndValidate(cfg *Config) error {
	if strings.TrimSpace(cfg.StoragePath) == "" {
		return errors.New("storage_path is required")
	}
	abs, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("resolve storage_path: %w", err)
	}
	cfg.StoragePath = abs
	if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	if strings.TrimSpace(cfg.IndexPath) != "" && !filepath.IsAbs(cfg.IndexPath) {
		if abs, err := filepath.Abs(cfg.IndexPath); err == nil {
			cfg.IndexPath = abs
		}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.MaxIterations > 10 {
		cfg.MaxIterations = 10
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 40
	}
	if cfg.ToolOutputLimit <= 0 {
		cfg.ToolOutputLimit = 8000
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 5
	}
	if cfg.SearchTopK > 20 {
		cfg.SearchTopK = 20
	}
	cfg.LLMBaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLMBaseURL), "/")
	cfg.ModerationBaseURL = strings.TrimRight(strings.TrimSpace(cfg.ModerationBaseURL), "/")
	cfg.EmbeddingBaseURL = strings.TrimRight(strings.TrimSpace(cfg.EmbeddingBaseURL), "/")
	cfg.TrackerBaseURL = strings.TrimRight(strings.TrimSpace(cfg.TrackerBaseURL), "/")
	cfg.SiteBaseURL = strings.TrimRight(strings.TrimSpace(cfg.SiteBaseURL), "/")
	if strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("llm_model is required")
	}
	return nil
}

func parseOptionalDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", v)
	}
	return d, nil
}
