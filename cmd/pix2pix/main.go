package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"pix2pix/configs"
	"pix2pix/internal/application"
	"pix2pix/internal/infrastructure/config"
	"pix2pix/internal/infrastructure/gemini"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version = "dev"
	commit  = "none"
)

// App は、コマンドが使用する外部依存をまとめたものです
type App struct {
	Out        io.Writer
	Err        io.Writer
	GetEnv     func(string) string
	LoadConfig func() (*configs.Config, error)
	NewClient  func(ctx context.Context, cfg *config.GeminiConfig, logger zerolog.Logger) (application.GenerationClient, error)
	IsTerminal func(w io.Writer) bool
}

// DefaultApp は、標準入出力と実際のGeminiクライアントを使用するAppを返します
func DefaultApp() *App {
	return &App{
		Out:        os.Stdout,
		Err:        os.Stderr,
		GetEnv:     os.Getenv,
		LoadConfig: configs.LoadConfig,
		NewClient: func(ctx context.Context, cfg *config.GeminiConfig, logger zerolog.Logger) (application.GenerationClient, error) {
			return gemini.NewImageClient(ctx, cfg, logger)
		},
		IsTerminal: isTerminal,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	return newRootCmd(app).Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pix2pix",
		Short: "Transform an image with a text prompt using Gemini",
		Long: `pix2pix transforms a source image according to a natural-language prompt.

Examples:
  pix2pix serve
  pix2pix translate --image cat.png --prompt "make it blue" --out blue-cat.png
  pix2pix invite-url`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	cmd.AddCommand(
		newServeCmd(app),
		newTranslateCmd(app),
		newInviteURLCmd(app),
	)

	return cmd
}

// isTerminal は、wが端末に接続されたファイルかどうかを返します
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
