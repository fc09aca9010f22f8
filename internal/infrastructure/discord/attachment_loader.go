package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/imagecodec"

	"github.com/bwmarrin/discordgo"
)

// AttachmentLoader は、Discordの添付ファイルをダウンロードしてUploadedImageに変換します
type AttachmentLoader struct {
	client   *http.Client
	maxBytes int64
}

// NewAttachmentLoader は新しいAttachmentLoaderインスタンスを作成します
// clientがnilの場合はhttp.DefaultClientを使用します
func NewAttachmentLoader(client *http.Client, maxBytes int64) *AttachmentLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &AttachmentLoader{
		client:   client,
		maxBytes: maxBytes,
	}
}

// FirstImage は、メッセージの添付ファイルから最初の画像を返します
func FirstImage(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, attachment := range attachments {
		if attachment == nil {
			continue
		}
		mediaType := attachment.ContentType
		if mediaType == "" {
			mediaType = imagecodec.MediaTypeFromFilename(attachment.Filename)
		}
		if strings.HasPrefix(mediaType, "image/") {
			return attachment
		}
	}
	return nil
}

// Load は、添付ファイルをダウンロードしてUploadedImageに変換します
func (l *AttachmentLoader) Load(ctx context.Context, attachment *discordgo.MessageAttachment) (domain.UploadedImage, error) {
	if l.maxBytes > 0 && int64(attachment.Size) > l.maxBytes {
		return domain.UploadedImage{}, &domain.UnreadableFileError{
			Name: attachment.Filename,
			Err:  fmt.Errorf("ファイルサイズが上限 %d バイトを超えています", l.maxBytes),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: attachment.Filename, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: attachment.Filename, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.UploadedImage{}, &domain.UnreadableFileError{
			Name: attachment.Filename,
			Err:  fmt.Errorf("添付ファイルのダウンロードに失敗: HTTP %d", resp.StatusCode),
		}
	}

	mediaType := attachment.ContentType
	if mediaType == "" {
		mediaType = imagecodec.MediaTypeFromFilename(attachment.Filename)
	}

	if l.maxBytes <= 0 {
		return imagecodec.Encode(ctx, resp.Body, attachment.Filename, mediaType)
	}

	// 本文は申告サイズを超えうるため、上限+1バイトまで読んで超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: attachment.Filename, Err: err}
	}
	if int64(len(data)) > l.maxBytes {
		return domain.UploadedImage{}, &domain.UnreadableFileError{
			Name: attachment.Filename,
			Err:  fmt.Errorf("ファイルサイズが上限 %d バイトを超えています", l.maxBytes),
		}
	}

	return imagecodec.Encode(ctx, bytes.NewReader(data), attachment.Filename, mediaType)
}
