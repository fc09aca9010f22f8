package discord

import (
	"bytes"
	"errors"
	"fmt"

	"pix2pix/internal/application"
	"pix2pix/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// DiscordMessageLimit は、Discordのメッセージ文字数制限です
const DiscordMessageLimit = 2000

// generatedFilename は、生成画像を送信するときのファイル名です
const generatedFilename = "generated.png"

// ResponseHandler は、Discordのレスポンス送信・フォーマット処理を担当するハンドラーです
type ResponseHandler struct {
	logger zerolog.Logger
}

// NewResponseHandler は新しいResponseHandlerインスタンスを作成します
func NewResponseHandler(logger zerolog.Logger) *ResponseHandler {
	return &ResponseHandler{logger: logger}
}

// SendText は、元メッセージへのリプライとしてテキストを送信します
func (h *ResponseHandler) SendText(s *discordgo.Session, m *discordgo.Message, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, truncate(content), m.Reference()); err != nil {
		h.logger.Error().Err(err).Str("channel", m.ChannelID).Msg("応答メッセージの送信に失敗")
	}
}

// SendError は、エラーをユーザー向けのメッセージにしてリプライします
func (h *ResponseHandler) SendError(s *discordgo.Session, m *discordgo.Message, err error) {
	h.SendText(s, m, h.formatError(err))
}

// SendGeneratedImage は、生成画像をPNGファイルとしてリプライします
func (h *ResponseHandler) SendGeneratedImage(s *discordgo.Session, m *discordgo.Message, prompt string, image domain.GeneratedImage) {
	data, err := image.Decode()
	if err != nil {
		h.logger.Error().Err(err).Msg("生成画像のデコードに失敗")
		h.SendError(s, m, &domain.UnknownGenerationError{Value: err})
		return
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   truncate(h.createImageMessage(prompt)),
		Reference: m.Reference(),
		Files: []*discordgo.File{
			{
				Name:        generatedFilename,
				ContentType: domain.GeneratedMediaType,
				Reader:      bytes.NewReader(data),
			},
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Str("channel", m.ChannelID).Msg("Discordへのファイルアップロードに失敗")
		return
	}

	h.logger.Info().Str("channel", m.ChannelID).Int("bytes", len(data)).Msg("生成画像を送信しました")
}

// createImageMessage は、生成画像に添えるメッセージを作成します
func (h *ResponseHandler) createImageMessage(prompt string) string {
	return fmt.Sprintf("🎨 **Done!**\n**Prompt:** %s", prompt)
}

// formatError は、エラーを適切なメッセージにフォーマットします
func (h *ResponseHandler) formatError(err error) string {
	if errors.Is(err, application.ErrGenerationInProgress) {
		return "⏳ A generation is already running in this channel. Please wait for it to finish."
	}
	return "❌ **Error:** " + domain.UserMessage(err)
}

// truncate は、Discordの文字数制限に収まるようにメッセージを切り詰めます
func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= DiscordMessageLimit {
		return content
	}
	return string(runes[:DiscordMessageLimit-3]) + "..."
}
