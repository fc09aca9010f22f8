package application

import (
	"context"

	"pix2pix/internal/domain"
)

// GenerationClient は、リモートの画像生成サービスを呼び出すクライアントのインターフェースです
type GenerationClient interface {
	// Translate は、元画像と指示文を送信し、生成された画像のbase64文字列を返します
	Translate(ctx context.Context, image domain.UploadedImage, prompt string) (domain.GeneratedImage, error)
}
