package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

// MarketData selects and tunes the upstream market-data provider. Exactly
// one provider is active per deployment.
type MarketData struct {
	Provider            string `json:"provider"` // "twelvedata" or "alphavantage"
	SnapshotCacheTTLSec int    `json:"snapshot_cache_ttl_sec"`
	CacheMaxItems       int    `json:"cache_max_items"`
	MinHistoryPoints    int    `json:"min_history_points"`
}

type TwelveData struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

type AlphaVantage struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

// LLM configures the earnings summarizer. Keys are env-only; their absence
// surfaces as a per-request configuration error, not a startup crash.
type LLM struct {
	Provider      string `json:"provider"` // "openai" or "" for unconfigured
	Model         string `json:"model"`
	APIKey        string `json:"-"`
	BriefTTLHours int    `json:"brief_ttl_hours"`
	CacheMaxItems int    `json:"cache_max_items"`
	MaxInputChars int    `json:"max_input_chars"`
	MinInputChars int    `json:"min_input_chars"`
}

type Logging struct {
	Level      string `json:"level"`
	Console    bool   `json:"console"`
	File       bool   `json:"file"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type Config struct {
	Server       Server       `json:"server"`
	MarketData   MarketData   `json:"marketdata"`
	TwelveData   TwelveData   `json:"twelvedata"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	LLM          LLM          `json:"llm"`
	Logging      Logging      `json:"logging"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		MarketData: MarketData{
			Provider:            "twelvedata",
			SnapshotCacheTTLSec: 3600,
			CacheMaxItems:       1000,
			MinHistoryPoints:    30,
		},
		LLM: LLM{
			Provider:      "openai",
			Model:         "gpt-4.1-mini",
			BriefTTLHours: 24,
			CacheMaxItems: 500,
			MaxInputChars: 40000,
			MinInputChars: 200,
		},
		Logging: Logging{
			Level:      "info",
			Console:    true,
			FilePath:   "logs/marketlens.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields;
// secrets come only from the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x := getenvInt("REQUEST_TIMEOUT_SEC"); x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}

	if v := os.Getenv("MARKETDATA_PROVIDER"); v != "" {
		cfg.MarketData.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if os.Getenv("SNAPSHOT_CACHE_TTL_SEC") != "" {
		cfg.MarketData.SnapshotCacheTTLSec = getenvInt("SNAPSHOT_CACHE_TTL_SEC")
	}
	if x := getenvInt("SNAPSHOT_MIN_HISTORY"); x > 0 {
		cfg.MarketData.MinHistoryPoints = x
	}

	if v := os.Getenv("TWELVE_DATA_API_KEY"); v != "" {
		cfg.TwelveData.APIKey = v
	}
	if v := os.Getenv("TWELVE_DATA_ENDPOINT"); v != "" {
		cfg.TwelveData.Endpoint = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_ENDPOINT"); v != "" {
		cfg.AlphaVantage.Endpoint = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if x := getenvInt("BRIEF_TTL_HOURS"); x > 0 {
		cfg.LLM.BriefTTLHours = x
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = true
		cfg.Logging.FilePath = v
	}
}

func getenvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	var x int
	_, _ = fmt.Sscanf(v, "%d", &x)
	return x
}
