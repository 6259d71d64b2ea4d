// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Defaults cover local development;
// production deployments set the secrets via environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/clubhouse247/clubops/internal/llm"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Slack    SlackConfig    `yaml:"slack"`
	SOP      SOPConfig      `yaml:"sop"`
	Predict  PredictConfig  `yaml:"predict"`
	Facility FacilityConfig `yaml:"facility"`
}

type ServerConfig struct {
	Port    int `yaml:"port"`
	MCPPort int `yaml:"mcp_port"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

type SOPConfig struct {
	Dir string `yaml:"dir"`
}

type PredictConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type FacilityConfig struct {
	Name string `yaml:"name"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		LLM: LLMConfig{
			Model: llm.DefaultModel,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		SOP: SOPConfig{
			Dir: "./sops",
		},
		Predict: PredictConfig{
			Schedule: "0 6 * * *",
		},
		Facility: FacilityConfig{
			Name: "Clubhouse 24/7 Golf",
		},
	}
}

// Load reads configuration from path (or $CLUBOPS_CONFIG, or ./config.yaml
// when path is empty), applies environment overrides, and validates the
// result. A missing config file is not an error; the defaults plus
// environment carry a full deployment.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("CLUBOPS_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		slog.Info("config loaded", "path", path)
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.Server.Port, "CLUBOPS_PORT")
	envInt(&cfg.Server.MCPPort, "CLUBOPS_MCP_PORT")
	envStr(&cfg.Storage.DataDir, "CLUBOPS_DATA_DIR")

	envBool(&cfg.LLM.Enabled, "CLUBOPS_LLM_ENABLED")
	envStr(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	envStr(&cfg.LLM.Model, "CLUBOPS_LLM_MODEL")

	envStr(&cfg.SMTP.Host, "SMTP_HOST")
	envInt(&cfg.SMTP.Port, "SMTP_PORT")
	envStr(&cfg.SMTP.Username, "SMTP_USERNAME")
	envStr(&cfg.SMTP.Password, "SMTP_PASSWORD")
	envStr(&cfg.SMTP.From, "SMTP_FROM")

	envStr(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	envStr(&cfg.Slack.ChannelID, "SLACK_CHANNEL_ID")

	envStr(&cfg.SOP.Dir, "CLUBOPS_SOP_DIR")

	envBool(&cfg.Predict.Enabled, "CLUBOPS_PREDICT_ENABLED")
	envStr(&cfg.Predict.Schedule, "CLUBOPS_PREDICT_SCHEDULE")

	envStr(&cfg.Facility.Name, "CLUBOPS_FACILITY_NAME")
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MCPPort < 0 || c.Server.MCPPort > 65535 {
		return fmt.Errorf("invalid mcp port %d", c.Server.MCPPort)
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm enabled but no API key configured; set ANTHROPIC_API_KEY")
	}
	if c.Predict.Enabled && !c.LLM.Enabled {
		return fmt.Errorf("predictions require llm to be enabled")
	}
	if c.Predict.Schedule != "" {
		if _, err := cron.ParseStandard(c.Predict.Schedule); err != nil {
			return fmt.Errorf("invalid predict schedule %q: %w", c.Predict.Schedule, err)
		}
	}
	return nil
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("ignoring unparsable integer env var", "key", key, "value", raw)
		return
	}
	*dst = i
}

func envBool(dst *bool, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("ignoring unparsable bool env var", "key", key, "value", raw)
		return
	}
	*dst = b
}
