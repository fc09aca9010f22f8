package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pix2pix/internal/application"
	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/imagecodec"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const (
	statusCommandName = "pix2pix-status"
	resetCommandName  = "pix2pix-reset"
)

// SlashCommandHandler は、Discordのスラッシュコマンドを処理するハンドラーです
type SlashCommandHandler struct {
	session  *discordgo.Session
	sessions *application.SessionService
	logger   zerolog.Logger
}

// NewSlashCommandHandler は新しいSlashCommandHandlerインスタンスを作成します
func NewSlashCommandHandler(
	session *discordgo.Session,
	sessions *application.SessionService,
	logger zerolog.Logger,
) *SlashCommandHandler {
	return &SlashCommandHandler{
		session:  session,
		sessions: sessions,
		logger:   logger,
	}
}

// commands は、登録するスラッシュコマンドの定義です
func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        statusCommandName,
			Description: "Show the source image, prompt and generation status for this channel",
		},
		{
			Name:        resetCommandName,
			Description: "Clear the source image, prompt and result for this channel",
		},
	}
}

// SetupSlashCommands は、スラッシュコマンドを設定します
func (h *SlashCommandHandler) SetupSlashCommands() error {
	// BotのユーザーIDを取得
	user, err := h.session.User("@me")
	if err != nil {
		return fmt.Errorf("Botユーザー情報の取得に失敗: %w", err)
	}

	// グローバルコマンドとして登録
	for _, command := range commands() {
		if _, err := h.session.ApplicationCommandCreate(user.ID, "", command); err != nil {
			h.logger.Error().Err(err).Str("command", command.Name).Msg("スラッシュコマンドの登録に失敗")
			return err
		}
		h.logger.Info().Str("command", command.Name).Msg("スラッシュコマンドを登録しました")
	}

	return nil
}

// SetupSlashCommandHandlers は、スラッシュコマンドのハンドラーを設定します
func (h *SlashCommandHandler) SetupSlashCommandHandlers() {
	h.session.AddHandler(h.handleInteractionCreate)
}

// handleInteractionCreate は、インタラクション作成イベントを処理します
func (h *SlashCommandHandler) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case statusCommandName:
		h.respondToInteraction(s, i, h.statusMessage(context.Background(), i.ChannelID), true)
	case resetCommandName:
		h.respondToInteraction(s, i, h.resetChannel(context.Background(), i.ChannelID), false)
	default:
		h.logger.Warn().Str("command", i.ApplicationCommandData().Name).Msg("未知のスラッシュコマンド")
	}
}

// statusMessage は、チャンネルの状態を表示用に整形します
func (h *SlashCommandHandler) statusMessage(ctx context.Context, channelID string) string {
	controller, err := h.sessions.Lookup(ctx, channelSessionID(channelID))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return "📊 Nothing uploaded in this channel yet. Mention me with an image and a prompt to start."
	}
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channelID).Msg("チャンネル状態の取得に失敗")
		return "❌ Failed to read the status for this channel."
	}

	return formatStatus(controller.Snapshot())
}

// resetChannel は、チャンネルの状態を初期化します
func (h *SlashCommandHandler) resetChannel(ctx context.Context, channelID string) string {
	controller, err := h.sessions.Lookup(ctx, channelSessionID(channelID))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return "🔄 Nothing to clear in this channel."
	}
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channelID).Msg("チャンネル状態の取得に失敗")
		return "❌ Failed to reset this channel."
	}

	controller.Reset()
	return "🔄 Cleared the image, prompt and result for this channel."
}

// formatStatus は、状態をDiscord向けのテキストにフォーマットします
func formatStatus(state domain.State) string {
	var b strings.Builder
	b.WriteString("📊 **Channel status**\n\n")

	if state.Image != nil {
		line := "🖼️ **Source image**: " + state.Image.MediaType
		if info, err := imagecodec.Describe(*state.Image); err == nil {
			line += fmt.Sprintf(" (%dx%d, %s)", info.Width, info.Height, info.Size)
		}
		b.WriteString(line + "\n")
	} else {
		b.WriteString("🖼️ **Source image**: none\n")
	}

	if state.Prompt != "" {
		fmt.Fprintf(&b, "✏️ **Prompt**: %s\n", state.Prompt)
	} else {
		b.WriteString("✏️ **Prompt**: none\n")
	}

	fmt.Fprintf(&b, "⚙️ **Status**: %s", state.Phase())
	if state.Error != "" {
		fmt.Fprintf(&b, "\n❌ **Last error**: %s", state.Error)
	}

	return truncate(b.String())
}

// respondToInteraction は、インタラクションに応答します
func (h *SlashCommandHandler) respondToInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}

	if ephemeral {
		response.Data.Flags = discordgo.MessageFlagsEphemeral
	}

	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		h.logger.Error().Err(err).Msg("インタラクションへの応答に失敗")
	}
}
