// Package config defines service configuration structures and loading.
//
// Conventions:
// - Defaults live in New; Load layers file and env on top.
// - External errors are wrapped via this package's sentinel kinds.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the sqlite database file; ":memory:" for ephemeral.
	DBPath string `koanf:"db_path"`

	// GeminiAPIKey authenticates the model collaborator.
	GeminiAPIKey string `koanf:"gemini_api_key"`

	// GeminiModel overrides the default model name.
	GeminiModel string `koanf:"gemini_model"`

	// JudgeRetryAttempts bounds retries on transient model overload.
	JudgeRetryAttempts uint `koanf:"judge_retry_attempts"`

	// JudgeRetryDelayMS is the initial backoff delay.
	JudgeRetryDelayMS int `koanf:"judge_retry_delay_ms"`

	// QueueSize bounds the in-memory battle-result queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of stats workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the battle-id dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MinBattles is the ranking sample-size cutoff.
	MinBattles int64 `koanf:"min_battles"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with compiled defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		DBPath:              "facearena.db",
		GeminiModel:         "gemini-2.5-flash",
		JudgeRetryAttempts:  3,
		JudgeRetryDelayMS:   500,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          50_000,
		MinBattles:          3,
		MaxLeaderboardLimit: 100,
	}
}
