package domain

import (
	"encoding/base64"
	"fmt"
)

// 受け付ける画像のメディアタイプ
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeWebP = "image/webp"
)

// GeneratedMediaType は、生成画像のメディアタイプです（常にPNGとして扱います）
const GeneratedMediaType = MediaTypePNG

// AcceptedMediaTypes は、アップロード可能なメディアタイプの一覧を返します
func AcceptedMediaTypes() []string {
	return []string{MediaTypePNG, MediaTypeJPEG, MediaTypeWebP}
}

// IsAcceptedMediaType は、メディアタイプが受け付け可能かどうかを判定します
func IsAcceptedMediaType(mediaType string) bool {
	for _, accepted := range AcceptedMediaTypes() {
		if accepted == mediaType {
			return true
		}
	}
	return false
}

// UploadedImage は、ユーザーがアップロードした元画像を表す値オブジェクトです
// EncodedBytes はデータURIのプレフィックスを含まないbase64ペイロードです
type UploadedImage struct {
	EncodedBytes string `json:"encoded_bytes"`
	MediaType    string `json:"media_type"`
}

// Validate は、UploadedImageの不変条件を検証します
func (img UploadedImage) Validate() error {
	if img.EncodedBytes == "" {
		return fmt.Errorf("%w: 画像データが空です", ErrInvalidImage)
	}
	if !IsAcceptedMediaType(img.MediaType) {
		return fmt.Errorf("%w: 未対応のメディアタイプです: %q", ErrInvalidImage, img.MediaType)
	}
	if _, err := base64.StdEncoding.DecodeString(img.EncodedBytes); err != nil {
		return fmt.Errorf("%w: base64のデコードに失敗: %v", ErrInvalidImage, err)
	}
	return nil
}

// Decode は、base64ペイロードを生のバイト列に戻します
func (img UploadedImage) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(img.EncodedBytes)
}

// DataURI は、表示用のデータURIを返します
func (img UploadedImage) DataURI() string {
	return DataURI(img.MediaType, img.EncodedBytes)
}

// GeneratedImage は、生成されたPNG画像のbase64文字列です。空文字列は「なし」を表します
type GeneratedImage string

// IsEmpty は、生成画像が存在しないかどうかを返します
func (g GeneratedImage) IsEmpty() bool {
	return g == ""
}

// DataURI は、生成画像の表示用データURIを返します
func (g GeneratedImage) DataURI() string {
	if g.IsEmpty() {
		return ""
	}
	return DataURI(GeneratedMediaType, string(g))
}

// Decode は、生成画像を生のバイト列に戻します
func (g GeneratedImage) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(g))
}

// DataURI は data:<mediaType>;base64,<payload> 形式の文字列を組み立てます
func DataURI(mediaType, payload string) string {
	return "data:" + mediaType + ";base64," + payload
}
