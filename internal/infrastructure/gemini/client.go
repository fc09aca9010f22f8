package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/config"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// contentGenerator は、genai.Modelsのうちこのクライアントが使用する操作です
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageClient は、Gemini APIで画像を編集するGenerationClientの実装です
// リトライは行わず、1回の呼び出しで結果を返します
type ImageClient struct {
	models contentGenerator
	config *config.GeminiConfig
	logger zerolog.Logger
}

// NewImageClient は新しいImageClientインスタンスを作成します
// APIキーが空の場合はエラーを返します
func NewImageClient(ctx context.Context, geminiConfig *config.GeminiConfig, logger zerolog.Logger) (*ImageClient, error) {
	if geminiConfig == nil {
		geminiConfig = config.DefaultGeminiConfig()
	}
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini APIキーが設定されていません")
	}
	if geminiConfig.ImageModelName == "" {
		geminiConfig.ImageModelName = config.DefaultImageModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini APIクライアントの作成に失敗: %w", err)
	}

	return newImageClient(client.Models, geminiConfig, logger), nil
}

func newImageClient(models contentGenerator, geminiConfig *config.GeminiConfig, logger zerolog.Logger) *ImageClient {
	return &ImageClient{
		models: models,
		config: geminiConfig,
		logger: logger.With().Str("component", "gemini").Str("model", geminiConfig.ImageModelName).Logger(),
	}
}

// Translate は、元画像と指示文を送信し、応答に含まれる最初の画像をbase64で返します
//
// API呼び出しの失敗は domain.GenerationFailedError、画像パートが無い応答は
// domain.ErrNoImageInResponse として返します。
func (g *ImageClient) Translate(ctx context.Context, image domain.UploadedImage, prompt string) (domain.GeneratedImage, error) {
	data, err := image.Decode()
	if err != nil {
		g.logger.Error().Err(err).Msg("元画像のデコードに失敗")
		return "", &domain.GenerationFailedError{Err: err}
	}

	g.logger.Debug().
		Str("media_type", image.MediaType).
		Int("image_bytes", len(data)).
		Int("prompt_len", len(prompt)).
		Msg("Gemini APIに画像編集をリクエスト中")

	contents := buildContents(data, image.MediaType, prompt)
	resp, err := g.models.GenerateContent(ctx, g.config.ImageModelName, contents, g.createImageConfig())
	if err != nil {
		g.logAPIError(ctx, err)
		return "", &domain.GenerationFailedError{Err: err}
	}

	return g.processImageResponse(resp)
}

// Close は、Gemini APIクライアントを閉じます
func (g *ImageClient) Close() error {
	// genai.ClientにはCloseメソッドがないため、何もしない
	return nil
}

// buildContents は、インラインデータパートとテキストパートからなるリクエストを作成します
func buildContents(data []byte, mediaType, prompt string) []*genai.Content {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mediaType, Data: data}},
		genai.NewPartFromText(prompt),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// createImageConfig は、出力モダリティを画像に指定した生成設定を作成します
func (g *ImageClient) createImageConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
		SafetySettings:     createSafetySettings(),
	}
}

// processImageResponse は、最初の候補のパートを順に走査し、最初の画像データを返します
func (g *ImageClient) processImageResponse(resp *genai.GenerateContentResponse) (domain.GeneratedImage, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		g.logger.Warn().Msg("Gemini APIの応答に候補が含まれていません")
		return "", domain.ErrNoImageInResponse
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		g.logger.Warn().Str("finish_reason", string(candidate.FinishReason)).Msg("Gemini APIの応答にContentが含まれていません")
		return "", domain.ErrNoImageInResponse
	}

	for i, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		g.logger.Info().
			Int("part", i).
			Str("mime_type", part.InlineData.MIMEType).
			Int("bytes", len(part.InlineData.Data)).
			Msg("Gemini APIから画像を取得")
		return domain.GeneratedImage(base64.StdEncoding.EncodeToString(part.InlineData.Data)), nil
	}

	event := g.logger.Warn().
		Str("finish_reason", string(candidate.FinishReason)).
		Int("parts", len(candidate.Content.Parts))
	if len(candidate.SafetyRatings) > 0 {
		event = event.Str("safety", formatSafetyRatings(candidate.SafetyRatings))
	}
	event.Msg("Gemini APIの応答に画像データがありません")

	return "", domain.ErrNoImageInResponse
}

// logAPIError は、呼び出し元に返す前に元のエラーを記録します
func (g *ImageClient) logAPIError(ctx context.Context, err error) {
	event := g.logger.Error().Err(err)

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		event = event.Int("code", apiErr.Code).Str("status", apiErr.Status)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		event = event.Bool("timeout", true)
	}

	event.Msg("Gemini APIの呼び出しに失敗")
}
