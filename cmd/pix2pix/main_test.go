package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pix2pix/configs"
	"pix2pix/internal/application"
	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/config"

	"github.com/rs/zerolog"
)

// fakeClient は、テスト用のGenerationClientです
type fakeClient struct {
	result domain.GeneratedImage
	err    error
	calls  int
	prompt string
}

func (f *fakeClient) Translate(_ context.Context, _ domain.UploadedImage, prompt string) (domain.GeneratedImage, error) {
	f.calls++
	f.prompt = prompt
	return f.result, f.err
}

// newTestApp は、テスト用のAppを作成します
func newTestApp(out, errOut *bytes.Buffer, client *fakeClient) *App {
	return &App{
		Out: out,
		Err: errOut,
		GetEnv: func(string) string {
			return ""
		},
		LoadConfig: func() (*configs.Config, error) {
			return &configs.Config{
				Gemini: config.GeminiConfig{APIKey: "test-key", ImageModelName: config.DefaultImageModelName},
				Server: *config.DefaultServerConfig(),
			}, nil
		},
		NewClient: func(context.Context, *config.GeminiConfig, zerolog.Logger) (application.GenerationClient, error) {
			return client, nil
		},
		IsTerminal: func(io.Writer) bool {
			return false
		},
	}
}

// writeTestPNG は、10x10の赤いPNGを書き出します
func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	path := filepath.Join(dir, "red.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("ファイルの作成に失敗: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("PNGのエンコードに失敗: %v", err)
	}
	return path
}

func TestDefaultApp(t *testing.T) {
	app := DefaultApp()

	if app.Out == nil || app.Err == nil {
		t.Error("DefaultApp() の出力先がnilです")
	}
	if app.GetEnv == nil || app.LoadConfig == nil || app.NewClient == nil || app.IsTerminal == nil {
		t.Error("DefaultApp() の依存がnilです")
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd(newTestApp(&bytes.Buffer{}, &bytes.Buffer{}, &fakeClient{}))

	for _, name := range []string{"serve", "translate", "invite-url"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("サブコマンド %s が見つかりません: %v", name, err)
		}
	}
}

func TestTranslate_WritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir)
	output := filepath.Join(dir, "out.png")

	var out, errOut bytes.Buffer
	client := &fakeClient{result: "Zm9v"}
	cmd := newRootCmd(newTestApp(&out, &errOut, client))
	cmd.SetArgs([]string{"translate", "--image", input, "--prompt", "make it blue", "--out", output})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if client.calls != 1 {
		t.Errorf("期待される呼び出し回数: 1, 実際: %d", client.calls)
	}
	if client.prompt != "make it blue" {
		t.Errorf("期待されるプロンプト: make it blue, 実際: %s", client.prompt)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("出力ファイルの読み込みに失敗: %v", err)
	}
	if string(data) != "foo" {
		t.Errorf("期待される出力: foo, 実際: %q", data)
	}
	if !strings.Contains(errOut.String(), "Saved: "+output) {
		t.Errorf("保存メッセージが出力されていません: %q", errOut.String())
	}
}

func TestTranslate_WritesStdout(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(newTestApp(&out, &errOut, &fakeClient{result: "Zm9v"}))
	cmd.SetArgs([]string{"translate", "--image", input, "--prompt", "make it blue"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if out.String() != "foo" {
		t.Errorf("期待される出力: foo, 実際: %q", out.String())
	}
}

func TestTranslate_RefusesTerminal(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir)

	client := &fakeClient{result: "Zm9v"}
	app := newTestApp(&bytes.Buffer{}, &bytes.Buffer{}, client)
	app.IsTerminal = func(io.Writer) bool { return true }

	cmd := newRootCmd(app)
	cmd.SetArgs([]string{"translate", "--image", input, "--prompt", "make it blue"})

	if err := cmd.Execute(); !errors.Is(err, errTerminalOutput) {
		t.Errorf("端末への出力が拒否されていません: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("クライアントが呼び出されました: %d", client.calls)
	}
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		client    *fakeClient
		wantError string
		wantCalls int
	}{
		{
			name:      "プロンプトなし",
			prompt:    "",
			client:    &fakeClient{result: "Zm9v"},
			wantError: domain.ValidationMessage,
			wantCalls: 0,
		},
		{
			name:      "API失敗",
			prompt:    "make it blue",
			client:    &fakeClient{err: errors.New("quota exceeded")},
			wantError: "Failed to generate image: quota exceeded",
			wantCalls: 1,
		},
		{
			name:      "画像なし",
			prompt:    "make it blue",
			client:    &fakeClient{},
			wantError: domain.NoImageInResponseMessage,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writeTestPNG(t, dir)

			cmd := newRootCmd(newTestApp(&bytes.Buffer{}, &bytes.Buffer{}, tt.client))
			cmd.SetArgs([]string{"translate", "--image", input, "--prompt", tt.prompt, "--out", filepath.Join(dir, "out.png")})

			err := cmd.Execute()
			if err == nil || err.Error() != tt.wantError {
				t.Errorf("期待されるエラー: %q, 実際: %v", tt.wantError, err)
			}
			if tt.client.calls != tt.wantCalls {
				t.Errorf("期待される呼び出し回数: %d, 実際: %d", tt.wantCalls, tt.client.calls)
			}
		})
	}
}

func TestTranslate_MissingFile(t *testing.T) {
	cmd := newRootCmd(newTestApp(&bytes.Buffer{}, &bytes.Buffer{}, &fakeClient{}))
	cmd.SetArgs([]string{"translate", "--image", filepath.Join(t.TempDir(), "missing.png"), "--prompt", "x", "--out", "-"})

	err := cmd.Execute()
	var unreadable *domain.UnreadableFileError
	if !errors.As(err, &unreadable) {
		t.Errorf("UnreadableFileErrorが返されるべきです: %v", err)
	}
}

func TestInviteURL(t *testing.T) {
	raw := inviteURL("12345", botPermissions)

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("URLの解析に失敗: %v", err)
	}
	if u.Host != "discord.com" {
		t.Errorf("期待されるホスト: discord.com, 実際: %s", u.Host)
	}

	q := u.Query()
	if q.Get("client_id") != "12345" {
		t.Errorf("期待されるclient_id: 12345, 実際: %s", q.Get("client_id"))
	}
	if q.Get("permissions") != "101376" {
		t.Errorf("期待される権限: 101376, 実際: %s", q.Get("permissions"))
	}
	if q.Get("scope") != "bot applications.commands" {
		t.Errorf("期待されるスコープ: bot applications.commands, 実際: %s", q.Get("scope"))
	}
}

func TestInviteURLCmd_WithClientID(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(newTestApp(&out, &bytes.Buffer{}, &fakeClient{}))
	cmd.SetArgs([]string{"invite-url", "--client-id", "12345"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if !strings.Contains(out.String(), "client_id=12345") {
		t.Errorf("招待URLが出力されていません: %q", out.String())
	}
}
