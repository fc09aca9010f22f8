package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pix2pix/internal/infrastructure/config"

	"github.com/joho/godotenv"
)

// Config は、アプリケーション全体の設定を定義します
type Config struct {
	Gemini  config.GeminiConfig
	Server  config.ServerConfig
	Discord config.DiscordConfig
}

// LoadConfig は、環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	LoadDotEnv()
	return loadFromEnv()
}

// LoadDotEnv は、.envファイルを環境変数に読み込みます（ファイルが存在しない場合は警告のみ）
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "警告: .envファイルの読み込みに失敗しました: %v\n", err)
	}
}

// loadFromEnv は、.envを読まずに現在の環境変数から設定を組み立てます
func loadFromEnv() (*Config, error) {
	serverDefaults := config.DefaultServerConfig()

	config := &Config{
		Gemini: config.GeminiConfig{
			APIKey:            firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")),
			ImageModelName:    getEnvOrDefault("GEMINI_IMAGE_MODEL", config.DefaultImageModelName),
			GenerationTimeout: getEnvAsDurationOrDefault("GENERATION_TIMEOUT", 0),
		},
		Server: config.ServerConfig{
			Addr:               getEnvOrDefault("HTTP_ADDR", serverDefaults.Addr),
			AppEnv:             getEnvOrDefault("APP_ENV", serverDefaults.AppEnv),
			MaxUploadBytes:     getEnvAsInt64OrDefault("MAX_UPLOAD_BYTES", serverDefaults.MaxUploadBytes),
			SessionIdleTimeout: getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", serverDefaults.SessionIdleTimeout),
			ShutdownTimeout:    getEnvAsDurationOrDefault("SHUTDOWN_TIMEOUT", serverDefaults.ShutdownTimeout),
		},
		Discord: config.DiscordConfig{
			BotToken: getEnvOrDefault("DISCORD_BOT_TOKEN", ""),
		},
	}

	// 必須設定の検証
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate は、設定の妥当性を検証します
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY (または API_KEY) が設定されていません")
	}

	if c.Gemini.ImageModelName == "" {
		return fmt.Errorf("GEMINI_IMAGE_MODEL が空です")
	}

	if c.Gemini.GenerationTimeout < 0 {
		return fmt.Errorf("GENERATION_TIMEOUT は0以上である必要があります")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("HTTP_ADDR が空です")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES は正の整数である必要があります")
	}

	if c.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT は0以上である必要があります")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT は正の値である必要があります")
	}

	return nil
}

// firstNonEmpty は、最初の空でない値を返します
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnvOrDefault は、環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64OrDefault は、環境変数を整数として取得し、存在しない場合はデフォルト値を返します
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は、環境変数を時間として取得し、存在しない場合はデフォルト値を返します
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
