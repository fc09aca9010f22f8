// Package imagecodec は、ユーザーが選択したファイルをUploadedImageに変換します。
// サイズやメディアタイプの検証は行いません（呼び出し側の責務です）。
package imagecodec

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"pix2pix/internal/domain"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/webp"
)

var errEmptyFile = errors.New("ファイルが空です")

// Encode は、rの内容をすべて読み取りbase64エンコードしたUploadedImageを返します
// メディアタイプには宣言された値をそのまま使用します
func Encode(ctx context.Context, r io.Reader, name, declaredType string) (domain.UploadedImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: name, Err: err}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: name, Err: err}
	}
	if len(data) == 0 {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: name, Err: errEmptyFile}
	}

	return EncodeBytes(data, declaredType), nil
}

// EncodeBytes は、読み取り済みのバイト列からUploadedImageを作成します
func EncodeBytes(data []byte, declaredType string) domain.UploadedImage {
	return domain.UploadedImage{
		EncodedBytes: base64.StdEncoding.EncodeToString(data),
		MediaType:    normalizeMediaType(declaredType),
	}
}

// FromDataURI は、data:<type>;base64,<payload> 形式からペイロードのみを取り出します
// プレフィックスが無い場合は入力全体をペイロードとして扱います
func FromDataURI(uri, declaredType string) (domain.UploadedImage, error) {
	payload := uri
	mediaType := declaredType

	if strings.HasPrefix(uri, "data:") {
		header, body, found := strings.Cut(uri, ",")
		if !found {
			return domain.UploadedImage{}, &domain.UnreadableFileError{Err: fmt.Errorf("データURIにペイロードがありません")}
		}
		payload = body
		if mediaType == "" {
			mediaType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
	}

	if payload == "" {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Err: errEmptyFile}
	}

	return domain.UploadedImage{
		EncodedBytes: payload,
		MediaType:    normalizeMediaType(mediaType),
	}, nil
}

// MediaTypeFromFilename は、拡張子からメディアタイプを推定します
func MediaTypeFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return domain.MediaTypePNG
	case ".jpg", ".jpeg":
		return domain.MediaTypeJPEG
	case ".webp":
		return domain.MediaTypeWebP
	default:
		return normalizeMediaType(mime.TypeByExtension(filepath.Ext(name)))
	}
}

// Info は、プレビュー表示やログ出力用の画像情報です
type Info struct {
	Width  int
	Height int
	Format string
	Bytes  int
	Size   string
}

// Describe は、画像ヘッダーを読み取り寸法とサイズを返します
func Describe(img domain.UploadedImage) (Info, error) {
	data, err := img.Decode()
	if err != nil {
		return Info{}, fmt.Errorf("画像のデコードに失敗: %w", err)
	}

	info := Info{
		Bytes: len(data),
		Size:  humanize.Bytes(uint64(len(data))),
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return info, fmt.Errorf("画像ヘッダーの読み取りに失敗: %w", err)
	}

	info.Width = cfg.Width
	info.Height = cfg.Height
	info.Format = format
	return info, nil
}

// normalizeMediaType は、パラメータを除いた小文字のメディアタイプを返します
func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return strings.ToLower(mediaType)
}
