package web

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"pix2pix/internal/domain"
)

// testPNG は、指定サイズのPNGをbase64で返します
func testPNG(t *testing.T, width, height int) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("PNGのエンコードに失敗: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestNewUploadPanel(t *testing.T) {
	t.Run("画像なし", func(t *testing.T) {
		panel := NewUploadPanel(domain.State{})

		if panel.HasImage {
			t.Error("画像が無い場合はHasImageがfalseであるべきです")
		}
		if panel.Accept != "image/png, image/jpeg, image/webp" {
			t.Errorf("期待されるaccept: image/png, image/jpeg, image/webp, 実際: %s", panel.Accept)
		}
		if panel.AcceptLabel != "PNG, JPG, WEBP" {
			t.Errorf("期待されるラベル: PNG, JPG, WEBP, 実際: %s", panel.AcceptLabel)
		}
	})

	t.Run("画像あり", func(t *testing.T) {
		img := &domain.UploadedImage{EncodedBytes: testPNG(t, 12, 8), MediaType: domain.MediaTypePNG}
		panel := NewUploadPanel(domain.State{Image: img})

		if !panel.HasImage {
			t.Fatal("HasImageがtrueであるべきです")
		}
		if string(panel.PreviewSrc) != img.DataURI() {
			t.Errorf("プレビューがデータURIではありません: %s", panel.PreviewSrc)
		}
		if panel.Dimensions != "12×8" {
			t.Errorf("期待される寸法: 12×8, 実際: %s", panel.Dimensions)
		}
		if panel.Size == "" {
			t.Error("サイズが設定されていません")
		}
	})

	t.Run("ヘッダーが読めない画像", func(t *testing.T) {
		img := &domain.UploadedImage{EncodedBytes: "Zm9v", MediaType: domain.MediaTypePNG}
		panel := NewUploadPanel(domain.State{Image: img})

		if !panel.HasImage {
			t.Error("ヘッダーが読めなくてもプレビューは表示されるべきです")
		}
		if panel.Dimensions != "" {
			t.Errorf("寸法は空であるべきです: %s", panel.Dimensions)
		}
		if panel.Size != "3 B" {
			t.Errorf("期待されるサイズ: 3 B, 実際: %s", panel.Size)
		}
	})
}

func TestNewResultPanel(t *testing.T) {
	tests := []struct {
		name  string
		state domain.State
		want  ResultMode
	}{
		{
			name:  "初期状態",
			state: domain.State{},
			want:  ResultPlaceholder,
		},
		{
			name:  "生成中",
			state: domain.State{Loading: true},
			want:  ResultLoading,
		},
		{
			name:  "生成中は前回の結果より優先",
			state: domain.State{Loading: true, Generated: "Zm9v"},
			want:  ResultLoading,
		},
		{
			name:  "結果あり",
			state: domain.State{Generated: "Zm9v"},
			want:  ResultImage,
		},
		{
			name:  "エラー時はプレースホルダー",
			state: domain.State{Error: "boom"},
			want:  ResultPlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			panel := NewResultPanel(tt.state)
			if panel.Mode != tt.want {
				t.Errorf("期待されるモード: %s, 実際: %s", tt.want, panel.Mode)
			}

			// 表示モードは常に1つだけ
			active := 0
			for _, on := range []bool{panel.IsLoading(), panel.HasImage(), panel.Mode == ResultPlaceholder} {
				if on {
					active++
				}
			}
			if active != 1 {
				t.Errorf("表示モードが%d個有効です", active)
			}
		})
	}

	panel := NewResultPanel(domain.State{Generated: "Zm9v"})
	if string(panel.ImageSrc) != "data:image/png;base64,Zm9v" {
		t.Errorf("期待される画像URI: data:image/png;base64,Zm9v, 実際: %s", panel.ImageSrc)
	}
}

func TestNewGenerateButton(t *testing.T) {
	img := &domain.UploadedImage{EncodedBytes: "Zm9v", MediaType: domain.MediaTypePNG}

	tests := []struct {
		name         string
		state        domain.State
		wantDisabled bool
		wantLabel    string
	}{
		{"画像もプロンプトも無い", domain.State{}, true, "Generate"},
		{"プロンプトのみ", domain.State{Prompt: "x"}, true, "Generate"},
		{"画像のみ", domain.State{Image: img}, true, "Generate"},
		{"生成可能", domain.State{Image: img, Prompt: "x"}, false, "Generate"},
		{"生成中", domain.State{Image: img, Prompt: "x", Loading: true}, true, "Generating..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			button := NewGenerateButton(tt.state)
			if button.Disabled != tt.wantDisabled {
				t.Errorf("期待されるDisabled: %v, 実際: %v", tt.wantDisabled, button.Disabled)
			}
			if button.Label != tt.wantLabel {
				t.Errorf("期待されるラベル: %s, 実際: %s", tt.wantLabel, button.Label)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	img := &domain.UploadedImage{EncodedBytes: "Zm9v", MediaType: domain.MediaTypePNG}
	page := NewPage(domain.State{Image: img, Prompt: "make it blue", Loading: true})

	if page.Prompt != "make it blue" {
		t.Errorf("期待されるプロンプト: make it blue, 実際: %s", page.Prompt)
	}
	if page.Phase != "generating" {
		t.Errorf("期待されるフェーズ: generating, 実際: %s", page.Phase)
	}
	if !page.Refresh {
		t.Error("生成中は自動更新が有効であるべきです")
	}
	if !page.Result.IsLoading() || !page.Button.Disabled {
		t.Error("生成中の表示になっていません")
	}
}

func TestFormatDimensions(t *testing.T) {
	tests := []struct {
		width, height int
		want          string
	}{
		{640, 480, "640×480"},
		{1, 1, "1×1"},
		{0, 480, ""},
		{640, -1, ""},
	}

	for _, tt := range tests {
		if got := formatDimensions(tt.width, tt.height); got != tt.want {
			t.Errorf("formatDimensions(%d, %d) = %q, 期待値: %q", tt.width, tt.height, got, tt.want)
		}
	}
}
