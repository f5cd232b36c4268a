package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string      `yaml:"discord_token"`
	DatabasePath  string      `yaml:"database_path"`
	LogLevel      string      `yaml:"log_level"`
	LogPath       string      `yaml:"log_path"`
	RetentionDays int         `yaml:"retention_days"`
	StaticDir     string      `yaml:"static_dir"`
	HTTP          HTTPConfig  `yaml:"http"`
	OAuth         OAuthConfig `yaml:"oauth"`
}

type HTTPConfig struct {
	Addr           string `yaml:"addr"`
	SessionMinutes int    `yaml:"session_minutes"`
}

type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/guildpanel.db",
		LogLevel:      "info",
		LogPath:       "",
		RetentionDays: 14,
		StaticDir:     "panel/build",
		HTTP: HTTPConfig{
			Addr:           ":3000",
			SessionMinutes: 120,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" {
		return Config{}, errors.New("DISCORD_CLIENT_ID and DISCORD_CLIENT_SECRET are required")
	}
	if cfg.OAuth.CallbackURL == "" {
		return Config{}, errors.New("OAUTH_CALLBACK_URL is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPath = envString("LOG_PATH", cfg.LogPath)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.StaticDir = envString("STATIC_DIR", cfg.StaticDir)
	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.SessionMinutes = envInt("SESSION_MINUTES", cfg.HTTP.SessionMinutes)
	cfg.OAuth.ClientID = envString("DISCORD_CLIENT_ID", cfg.OAuth.ClientID)
	cfg.OAuth.ClientSecret = envString("DISCORD_CLIENT_SECRET", cfg.OAuth.ClientSecret)
	cfg.OAuth.CallbackURL = envString("OAUTH_CALLBACK_URL", cfg.OAuth.CallbackURL)
}

// BuildLogger builds the process logger: JSON to stdout, and when logPath is
// set also to a size-rotated file.
func BuildLogger(level, logPath string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "message"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	atomicLevel := zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel),
	}
	if logPath != "" {
		rotating := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     30,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotating), atomicLevel))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
