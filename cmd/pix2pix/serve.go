package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pix2pix/configs"
	"pix2pix/internal/application"
	discordInfra "pix2pix/internal/infrastructure/discord"
	"pix2pix/internal/infrastructure/logger"
	"pix2pix/internal/infrastructure/session"
	discordPres "pix2pix/internal/presentation/discord"
	"pix2pix/internal/presentation/web"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// attachmentDownloadTimeout は、Discord添付ファイルのダウンロード期限です
const attachmentDownloadTimeout = 30 * time.Second

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI (and the Discord bot when DISCORD_BOT_TOKEN is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(parent context.Context, app *App) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 設定を読み込み
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	log := logger.New(cfg.Server.AppEnv, app.Out)
	log.Info().Str("addr", cfg.Server.Addr).Str("model", cfg.Gemini.ImageModelName).Msg("pix2pixを起動中...")

	// Gemini APIクライアントを作成
	client, err := app.NewClient(ctx, &cfg.Gemini, log)
	if err != nil {
		return fmt.Errorf("Gemini APIクライアントの作成に失敗: %w", err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer closer.Close()
	}

	// セッションを作成
	sessions := application.NewSessionService(
		session.NewMemoryRepository(),
		client,
		&application.ControllerConfig{GenerationTimeout: cfg.Gemini.GenerationTimeout},
		log,
	)
	go sessions.RunSweeper(ctx, cfg.Server.SessionIdleTimeout)

	// HTTPサーバーを作成
	handler, err := web.NewHandler(sessions, &cfg.Server, log)
	if err != nil {
		return fmt.Errorf("Webハンドラの作成に失敗: %w", err)
	}
	server := web.NewServer(cfg.Server.Addr, handler.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	log.Info().Str("addr", cfg.Server.Addr).Msg("HTTPサーバーを起動しました")

	// Discord連携
	if cfg.Discord.Enabled() {
		discordSession, err := startDiscord(cfg, sessions, log)
		if err != nil {
			shutdownServer(server, cfg.Server.ShutdownTimeout, log)
			return err
		}
		defer func() {
			if err := discordSession.Close(); err != nil {
				log.Warn().Err(err).Msg("Discordセッションのクローズに失敗")
			}
		}()
	} else {
		log.Info().Msg("DISCORD_BOT_TOKEN が未設定のためDiscord連携は無効です")
	}

	// 終了シグナルを待機
	select {
	case <-ctx.Done():
		log.Info().Msg("終了シグナルを受信しました。停止中...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーが異常終了しました: %w", err)
		}
	}

	shutdownServer(server, cfg.Server.ShutdownTimeout, log)
	log.Info().Msg("正常に停止しました")
	return nil
}

func shutdownServer(server *web.Server, timeout time.Duration, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("HTTPサーバーの停止に失敗")
	}
}

// startDiscord は、Discordに接続してメンションとスラッシュコマンドの処理を開始します
func startDiscord(cfg *configs.Config, sessions *application.SessionService, log zerolog.Logger) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("Discordセッションの作成に失敗: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	// Botの情報を取得
	user, err := dg.User("@me")
	if err != nil {
		return nil, fmt.Errorf("Bot情報の取得に失敗: %w", err)
	}
	log.Info().Str("user", user.Username).Str("id", user.ID).Msg("Bot情報")

	discordLog := log.With().Str("component", "discord").Logger()
	loader := discordInfra.NewAttachmentLoader(&http.Client{Timeout: attachmentDownloadTimeout}, cfg.Server.MaxUploadBytes)
	slashCommandHandler := discordPres.NewSlashCommandHandler(dg, sessions, discordLog)

	handler := discordPres.NewDiscordHandler(dg, sessions, loader, user.ID, slashCommandHandler, discordLog)
	handler.SetupHandlers()

	if err := slashCommandHandler.SetupSlashCommands(); err != nil {
		return nil, fmt.Errorf("スラッシュコマンドの設定に失敗: %w", err)
	}

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("Discordへの接続に失敗: %w", err)
	}

	log.Info().Msg("Discordに接続しました")
	return dg, nil
}
