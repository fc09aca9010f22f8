package discord

import (
	"pix2pix/internal/application"
	discordInfra "pix2pix/internal/infrastructure/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// DiscordHandler は、メンションとスラッシュコマンドの各ハンドラをまとめて登録します
type DiscordHandler struct {
	mentionHandler      *MentionHandler
	slashCommandHandler *SlashCommandHandler
	logger              zerolog.Logger
}

// NewDiscordHandler は、チャンネルごとのセッションを扱うDiscordHandlerを作成します
// slashCommandHandlerがnilの場合、スラッシュコマンドは登録しません
func NewDiscordHandler(
	session *discordgo.Session,
	sessions *application.SessionService,
	loader *discordInfra.AttachmentLoader,
	botID string,
	slashCommandHandler *SlashCommandHandler,
	logger zerolog.Logger,
) *DiscordHandler {
	responseHandler := NewResponseHandler(logger)

	return &DiscordHandler{
		mentionHandler:      NewMentionHandler(session, sessions, loader, responseHandler, botID, logger),
		slashCommandHandler: slashCommandHandler,
		logger:              logger,
	}
}

// SetupHandlers は、Discordのイベントハンドラを設定します
func (h *DiscordHandler) SetupHandlers() {
	h.mentionHandler.SetupHandlers()

	if h.slashCommandHandler == nil {
		h.logger.Debug().Msg("スラッシュコマンドは無効です")
		return
	}
	h.slashCommandHandler.SetupSlashCommandHandlers()
}
