package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pix2pix/internal/application"
	discordInfra "pix2pix/internal/infrastructure/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// discardedMessage は、生成中に新しい画像のアップロードかリセットが行われた場合の応答です
const discardedMessage = "ℹ️ A new image was uploaded or this channel was reset while generating, so the result was discarded."

// mentionCommand は、メンション本文から判定した操作です
type mentionCommand int

const (
	commandGenerate mentionCommand = iota
	commandRemove
	commandReset
)

// MentionHandler は、Discordのメンション処理を担当するハンドラーです
// チャンネルごとに1つのControllerを使用します
type MentionHandler struct {
	session         *discordgo.Session
	sessions        *application.SessionService
	loader          *discordInfra.AttachmentLoader
	responseHandler *ResponseHandler
	logger          zerolog.Logger
	botID           string

	// botUsernameはReadyイベントで設定され、メンション処理のgoroutineから読まれます
	mu          sync.RWMutex
	botUsername string
}

// NewMentionHandler は新しいMentionHandlerインスタンスを作成します
func NewMentionHandler(
	session *discordgo.Session,
	sessions *application.SessionService,
	loader *discordInfra.AttachmentLoader,
	responseHandler *ResponseHandler,
	botID string,
	logger zerolog.Logger,
) *MentionHandler {
	return &MentionHandler{
		session:         session,
		sessions:        sessions,
		loader:          loader,
		responseHandler: responseHandler,
		logger:          logger,
		botID:           botID,
	}
}

// SetupHandlers は、メンション関連のイベントハンドラを設定します
func (h *MentionHandler) SetupHandlers() {
	h.session.AddHandler(h.handleMessageCreate)
	h.session.AddHandler(h.handleReady)
}

// handleReady は、Botが準備完了した際のイベントを処理します
func (h *MentionHandler) handleReady(_ *discordgo.Session, event *discordgo.Ready) {
	h.logger.Info().Str("user", event.User.Username).Msg("Botが準備完了しました")
	h.setBotUsername(event.User.Username)
}

// handleMessageCreate は、メッセージ作成イベントを処理します
func (h *MentionHandler) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Bot自身のメッセージは無視
	if m.Author == nil || m.Author.ID == h.botID {
		return
	}

	// メンションされているかチェック
	if !h.isMentioned(m) {
		return
	}

	// 非同期でメンションを処理
	go h.processMention(s, m)
}

// processMention は、添付画像・プロンプト・操作をControllerに反映し、必要なら生成します
func (h *MentionHandler) processMention(s *discordgo.Session, m *discordgo.MessageCreate) {
	ctx := context.Background()
	logger := h.logger.With().Str("channel", m.ChannelID).Str("message", m.ID).Logger()

	controller, err := h.sessions.Open(ctx, channelSessionID(m.ChannelID))
	if err != nil {
		logger.Error().Err(err).Msg("チャンネルのセッション取得に失敗")
		h.responseHandler.SendError(s, m.Message, err)
		return
	}

	content := h.extractUserContent(m)

	switch parseCommand(content) {
	case commandRemove:
		controller.RemoveImage()
		h.responseHandler.SendText(s, m.Message, "🗑️ Source image removed.")
		return
	case commandReset:
		controller.Reset()
		h.responseHandler.SendText(s, m.Message, "🔄 Cleared the image, prompt and result for this channel.")
		return
	}

	uploaded := false
	if attachment := discordInfra.FirstImage(m.Attachments); attachment != nil {
		image, err := h.loader.Load(ctx, attachment)
		if err == nil {
			err = controller.UploadImage(image)
		}
		if err != nil {
			logger.Warn().Err(err).Str("file", attachment.Filename).Msg("添付画像の取り込みに失敗")
			h.responseHandler.SendText(s, m.Message, "❌ The attached file could not be used. Please attach a PNG, JPG or WEBP image.")
			return
		}
		uploaded = true
	}

	if content != "" {
		controller.SetPrompt(content)
	} else if uploaded {
		h.responseHandler.SendText(s, m.Message, "🖼️ Image received. Mention me again with a transformation prompt.")
		return
	}

	// 処理中メッセージを送信
	thinkingMsg, err := s.ChannelMessageSendReply(m.ChannelID, "🎨 Generating your image...", m.Reference())
	if err != nil {
		logger.Warn().Err(err).Msg("処理中メッセージの送信に失敗")
	}

	err = controller.GenerateAndWait(ctx)

	// 処理中メッセージを削除
	if thinkingMsg != nil {
		if delErr := s.ChannelMessageDelete(m.ChannelID, thinkingMsg.ID); delErr != nil {
			logger.Debug().Err(delErr).Msg("処理中メッセージの削除に失敗")
		}
	}

	if err != nil {
		h.responseHandler.SendError(s, m.Message, err)
		return
	}

	state := controller.Snapshot()
	if state.Generated.IsEmpty() {
		// 生成中に新しい画像がアップロードされたかリセットされた場合のみ結果が破棄される
		h.responseHandler.SendText(s, m.Message, discardedMessage)
		return
	}

	h.responseHandler.SendGeneratedImage(s, m.Message, state.Prompt, state.Generated)
}

func (h *MentionHandler) setBotUsername(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.botUsername = name
}

func (h *MentionHandler) username() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.botUsername
}

// isMentioned は、メッセージがBotへのメンションかどうかを判定します
func (h *MentionHandler) isMentioned(m *discordgo.MessageCreate) bool {
	// メンション配列をチェック
	for _, mention := range m.Mentions {
		if mention != nil && mention.ID == h.botID {
			return true
		}
	}

	// メンション配列が空の場合、コンテンツをチェック
	username := h.username()
	if len(m.Mentions) == 0 && username != "" {
		content := strings.ToLower(m.Content)
		botMention := fmt.Sprintf("@%s", strings.ToLower(username))
		return strings.Contains(content, botMention)
	}

	return false
}

// extractUserContent は、メンション部分を除去したユーザーのコンテンツを抽出します
func (h *MentionHandler) extractUserContent(m *discordgo.MessageCreate) string {
	content := m.Content

	for _, mention := range m.Mentions {
		if mention == nil {
			continue
		}
		content = strings.ReplaceAll(content, fmt.Sprintf("<@%s>", mention.ID), "")
		content = strings.ReplaceAll(content, fmt.Sprintf("<@!%s>", mention.ID), "")
	}

	if username := h.username(); username != "" {
		content = strings.ReplaceAll(content, "@"+username, "")
	}

	return strings.TrimSpace(content)
}

// parseCommand は、本文が操作キーワードかどうかを判定します
func parseCommand(content string) mentionCommand {
	switch cases.Fold().String(strings.Join(strings.Fields(content), " ")) {
	case "remove", "remove image":
		return commandRemove
	case "reset", "clear":
		return commandReset
	default:
		return commandGenerate
	}
}

// channelSessionID は、チャンネルに対応するセッションIDを返します
func channelSessionID(channelID string) string {
	return "discord:" + channelID
}
