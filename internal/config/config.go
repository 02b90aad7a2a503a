// Package config provides configuration management for the avatar
// animation engine.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/TAKIS21345/techsteps-sub004/internal/audio"
	"github.com/TAKIS21345/techsteps-sub004/internal/behavior"
	"github.com/TAKIS21345/techsteps-sub004/internal/expression"
	"github.com/TAKIS21345/techsteps-sub004/internal/logging"
	"github.com/TAKIS21345/techsteps-sub004/internal/perf"
	"github.com/TAKIS21345/techsteps-sub004/internal/viseme"
)

// TTSConfig configures the speech provider.
type TTSConfig struct {
	Provider string `mapstructure:"provider"` // openai
	APIKey   string `mapstructure:"api_key"`
	VoiceID  string `mapstructure:"voice_id"`
}

// StreamConfig configures the morph-state websocket server.
type StreamConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	UpdateRateHz   int    `mapstructure:"update_rate_hz"`
	AllowAnyOrigin bool   `mapstructure:"allow_any_origin"`
}

// MeshConfig points at the avatar model whose morph targets validate
// buffer keys.
type MeshConfig struct {
	ModelPath string `mapstructure:"model_path"` // glTF/GLB, empty disables validation
}

// Config holds all engine configuration.
type Config struct {
	Logging    logging.Config             `mapstructure:"logging"`
	Audio      audio.ExtractorConfig      `mapstructure:"audio"`
	VAD        audio.VADConfig            `mapstructure:"vad"`
	Classifier viseme.ClassifierConfig    `mapstructure:"classifier"`
	Engine     expression.EngineConfig    `mapstructure:"engine"`
	Selector   expression.SelectorConfig  `mapstructure:"selector"`
	Behavior   behavior.CoordinatorConfig `mapstructure:"behavior"`
	Perf       perf.GovernorConfig        `mapstructure:"perf"`
	TTS        TTSConfig                  `mapstructure:"tts"`
	Stream     StreamConfig               `mapstructure:"stream"`
	Mesh       MeshConfig                 `mapstructure:"mesh"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging:    *logging.DefaultConfig(),
		Audio:      *audio.DefaultExtractorConfig(),
		VAD:        *audio.DefaultVADConfig(),
		Classifier: *viseme.DefaultClassifierConfig(),
		Engine:     *expression.DefaultEngineConfig(),
		Selector:   *expression.DefaultSelectorConfig(),
		Behavior:   *behavior.DefaultCoordinatorConfig(),
		Perf:       *perf.DefaultGovernorConfig(),
		TTS: TTSConfig{
			Provider: "openai",
			VoiceID:  "nova",
		},
		Stream: StreamConfig{
			ListenAddr:   "127.0.0.1:8794",
			UpdateRateHz: 30,
		},
	}
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".techsteps"), nil
}

// Load reads configuration from file and environment. A missing config
// file falls back to defaults and writes one.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TECHSTEPS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to file.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	viper.Set("logging", cfg.Logging)
	viper.Set("audio", cfg.Audio)
	viper.Set("vad", cfg.VAD)
	viper.Set("classifier", cfg.Classifier)
	viper.Set("engine", cfg.Engine)
	viper.Set("selector", cfg.Selector)
	viper.Set("behavior", cfg.Behavior)
	viper.Set("perf", cfg.Perf)
	viper.Set("tts", cfg.TTS)
	viper.Set("stream", cfg.Stream)
	viper.Set("mesh", cfg.Mesh)

	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
