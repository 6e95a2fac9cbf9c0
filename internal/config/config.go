package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir           string  `json:"data_dir"`
	LogLevel          string  `json:"log_level"`
	MaxConcurrent     int     `json:"max_concurrent"`
	AutoSendThreshold float64 `json:"auto_send_threshold"`
	RateLimit         struct {
		PerHour int `json:"per_hour"`
		PerDay  int `json:"per_day"`
	} `json:"rate_limit"`
	Local struct {
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
	} `json:"local"`
	Embeddings struct {
		BaseURL string `json:"base_url"`
	} `json:"embeddings"`
	Cloud struct {
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"cloud"`
	Connectivity struct {
		ProbeURL string `json:"probe_url"`
	} `json:"connectivity"`
	Alert struct {
		WebhookURL string `json:"webhook_url"`
	} `json:"alert"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Sweep struct {
		Schedule           string `json:"schedule"`
		AuditRetentionDays int    `json:"audit_retention_days"`
	} `json:"sweep"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:           filepath.Join(os.Getenv("HOME"), ".careline"),
		LogLevel:          "info",
		MaxConcurrent:     2,
		AutoSendThreshold: 0.7,
	}
	cfg.RateLimit.PerHour = 20
	cfg.RateLimit.PerDay = 100
	cfg.Local.BaseURL = "http://127.0.0.1:8080"
	cfg.Local.Model = "medgemma-4b"
	cfg.Embeddings.BaseURL = "http://127.0.0.1:8081"
	cfg.Cloud.BaseURL = "https://api.openai.com/v1"
	cfg.Cloud.Model = "gpt-4o-mini"
	cfg.Cloud.MaxTokens = 400
	cfg.Cloud.Temperature = 0.7
	cfg.Connectivity.ProbeURL = "https://api.openai.com/v1"
	cfg.Sweep.Schedule = "@hourly"
	cfg.Sweep.AuditRetentionDays = 30

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.Cloud.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.Cloud.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if webhook := os.Getenv("CARELINE_ALERT_WEBHOOK"); webhook != "" {
		cfg.Alert.WebhookURL = webhook
	}
	if dataDir := os.Getenv("CARELINE_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	return Save(path, cfg)
}

// Save writes the config atomically via a temp file and rename.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
