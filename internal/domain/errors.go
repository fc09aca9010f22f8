package domain

import (
	"errors"
	"fmt"
)

// ユーザーに表示されるエラーメッセージ
const (
	ValidationMessage        = "Please upload an image and provide a prompt."
	NoImageInResponseMessage = "No image data found in the API response."
	UnknownGenerationMessage = "An unknown error occurred during image generation."
	generationFailedPrefix   = "Failed to generate image: "
)

// ドメイン固有のエラー型を定義
var (
	// ErrValidation は、画像またはプロンプトが不足したまま生成を要求した場合のエラーです
	ErrValidation = errors.New(ValidationMessage)

	// ErrNoImageInResponse は、APIの応答に画像パートが含まれていない場合のエラーです
	ErrNoImageInResponse = errors.New(NoImageInResponseMessage)

	// ErrInvalidImage は、UploadedImageの不変条件を満たさない場合のエラーです
	ErrInvalidImage = errors.New("無効な画像です")

	// ErrSessionNotFound は、セッションが存在しない場合のエラーです
	ErrSessionNotFound = errors.New("セッションが見つかりません")
)

// GenerationFailedError は、リモート呼び出しが失敗した場合のエラーです
// 一時的な失敗（レート制限など）と恒久的な失敗（認証など）は区別しません
type GenerationFailedError struct {
	Err error
}

func (e *GenerationFailedError) Error() string {
	if e.Err == nil {
		return generationFailedPrefix + "unknown error"
	}
	return generationFailedPrefix + e.Err.Error()
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}

// UnknownGenerationError は、error以外の値（panicなど）による失敗を表します
type UnknownGenerationError struct {
	Value any
}

func (e *UnknownGenerationError) Error() string {
	return UnknownGenerationMessage
}

// UnreadableFileError は、選択されたファイルを読み取れなかった場合のエラーです
type UnreadableFileError struct {
	Name string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("ファイルを読み取れません: %v", e.Err)
	}
	return fmt.Sprintf("ファイル %s を読み取れません: %v", e.Name, e.Err)
}

func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

// UserMessage は、エラーをユーザー向けのメッセージに変換します
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var failed *GenerationFailedError
	var unknown *UnknownGenerationError
	switch {
	case errors.Is(err, ErrValidation):
		return ValidationMessage
	case errors.Is(err, ErrNoImageInResponse):
		return NoImageInResponseMessage
	case errors.As(err, &failed):
		return failed.Error()
	case errors.As(err, &unknown):
		return UnknownGenerationMessage
	default:
		return err.Error()
	}
}
