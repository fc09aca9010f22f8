package config

import "time"

// DefaultImageModelName は、画像編集に使用する既定のモデル名です
const DefaultImageModelName = "gemini-2.5-flash-image"

// GeminiConfig は、Gemini API関連の設定を定義します
type GeminiConfig struct {
	APIKey            string
	ImageModelName    string        // 画像生成用モデル名
	GenerationTimeout time.Duration // 0の場合は期限なし
}

// ServerConfig は、HTTPサーバー関連の設定を定義します
type ServerConfig struct {
	Addr               string
	AppEnv             string
	MaxUploadBytes     int64
	SessionIdleTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// DiscordConfig は、Discord関連の設定を定義します
// BotTokenが空の場合、Discord連携は無効です
type DiscordConfig struct {
	BotToken string
}

// Enabled は、Discord連携が有効かどうかを返します
func (c DiscordConfig) Enabled() bool {
	return c.BotToken != ""
}

// DefaultGeminiConfig は、デフォルトのGemini設定を返します
func DefaultGeminiConfig() *GeminiConfig {
	return &GeminiConfig{
		ImageModelName: DefaultImageModelName,
	}
}

// DefaultServerConfig は、デフォルトのサーバー設定を返します
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:               ":8080",
		AppEnv:             "production",
		MaxUploadBytes:     20 << 20,
		SessionIdleTimeout: 30 * time.Minute,
		ShutdownTimeout:    10 * time.Second,
	}
}
