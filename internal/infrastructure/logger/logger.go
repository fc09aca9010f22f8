package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New は、outへ出力するアプリケーション用のzerolog.Loggerを作成します
// development環境ではDebugレベルで人が読みやすい形式に出力します
func New(appEnv string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger
}
