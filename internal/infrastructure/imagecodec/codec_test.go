package imagecodec

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"pix2pix/internal/domain"
)

// redPNG は、10x10の赤いPNGを作成します
func redPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNGのエンコードに失敗: %v", err)
	}
	return buf.Bytes()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk error")
}

func TestEncode(t *testing.T) {
	data := redPNG(t)

	img, err := Encode(context.Background(), bytes.NewReader(data), "red.png", "image/png")
	if err != nil {
		t.Fatalf("予期しないエラーが発生しました: %v", err)
	}

	if img.MediaType != domain.MediaTypePNG {
		t.Errorf("期待されるメディアタイプ: image/png, 実際: %s", img.MediaType)
	}
	if strings.HasPrefix(img.EncodedBytes, "data:") {
		t.Error("データURIのプレフィックスが含まれています")
	}

	decoded, err := base64.StdEncoding.DecodeString(img.EncodedBytes)
	if err != nil {
		t.Fatalf("base64のデコードに失敗: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("デコード結果が元のバイト列と一致しません")
	}
	if err := img.Validate(); err != nil {
		t.Errorf("エンコード結果が不変条件を満たしていません: %v", err)
	}
}

func TestEncode_DeclaredTypeIsKept(t *testing.T) {
	// 内容の判定は行わず、宣言されたメディアタイプをそのまま使う
	img, err := Encode(context.Background(), bytes.NewReader(redPNG(t)), "red.jpg", "Image/JPEG; charset=binary")
	if err != nil {
		t.Fatalf("予期しないエラーが発生しました: %v", err)
	}
	if img.MediaType != domain.MediaTypeJPEG {
		t.Errorf("期待されるメディアタイプ: image/jpeg, 実際: %s", img.MediaType)
	}
}

func TestEncode_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		r    func() *bytes.Reader
	}{
		{"空のファイル", context.Background(), func() *bytes.Reader { return bytes.NewReader(nil) }},
		{"キャンセル済み", canceled, func() *bytes.Reader { return bytes.NewReader([]byte("x")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.ctx, tt.r(), "file.png", "image/png")
			var unreadable *domain.UnreadableFileError
			if !errors.As(err, &unreadable) {
				t.Errorf("UnreadableFileErrorが期待されます: %v", err)
			}
		})
	}

	_, err := Encode(context.Background(), failingReader{}, "broken.png", "image/png")
	var unreadable *domain.UnreadableFileError
	if !errors.As(err, &unreadable) || unreadable.Name != "broken.png" {
		t.Errorf("読み取り失敗はUnreadableFileErrorであるべきです: %v", err)
	}
}

func TestFromDataURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		declared    string
		wantPayload string
		wantMedia   string
		wantErr     bool
	}{
		{"プレフィックスあり", "data:image/png;base64,aGVsbG8=", "", "aGVsbG8=", "image/png", false},
		{"宣言タイプを優先", "data:image/png;base64,aGVsbG8=", "image/webp", "aGVsbG8=", "image/webp", false},
		{"プレフィックスなし", "aGVsbG8=", "image/jpeg", "aGVsbG8=", "image/jpeg", false},
		{"ペイロードなし", "data:image/png;base64", "", "", "", true},
		{"空", "", "image/png", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromDataURI(tt.uri, tt.declared)
			if tt.wantErr {
				if err == nil {
					t.Error("エラーが期待されましたが、発生しませんでした")
				}
				return
			}
			if err != nil {
				t.Fatalf("予期しないエラーが発生しました: %v", err)
			}
			if img.EncodedBytes != tt.wantPayload || img.MediaType != tt.wantMedia {
				t.Errorf("期待される結果: %s %s, 実際: %+v", tt.wantPayload, tt.wantMedia, img)
			}
		})
	}
}

func TestMediaTypeFromFilename(t *testing.T) {
	tests := map[string]string{
		"cat.png":  domain.MediaTypePNG,
		"CAT.JPG":  domain.MediaTypeJPEG,
		"cat.jpeg": domain.MediaTypeJPEG,
		"cat.webp": domain.MediaTypeWebP,
		"cat":      "",
	}

	for name, want := range tests {
		if got := MediaTypeFromFilename(name); got != want {
			t.Errorf("%s: 期待されるメディアタイプ: %q, 実際: %q", name, want, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	data := redPNG(t)
	img := EncodeBytes(data, "image/png")

	info, err := Describe(img)
	if err != nil {
		t.Fatalf("予期しないエラーが発生しました: %v", err)
	}
	if info.Width != 10 || info.Height != 10 {
		t.Errorf("期待される寸法: 10x10, 実際: %dx%d", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("期待される形式: png, 実際: %s", info.Format)
	}
	if info.Bytes != len(data) || info.Size == "" {
		t.Errorf("サイズ情報が不正です: %+v", info)
	}
}

func TestDescribe_NotAnImage(t *testing.T) {
	img := EncodeBytes([]byte("plain text"), "image/png")

	info, err := Describe(img)
	if err == nil {
		t.Error("画像でないデータはエラーになるべきです")
	}
	if info.Bytes != len("plain text") {
		t.Errorf("ヘッダーが読めなくてもサイズは返されるべきです: %+v", info)
	}
}
