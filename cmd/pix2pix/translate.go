package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pix2pix/internal/application"
	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/imagecodec"
	"pix2pix/internal/infrastructure/logger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errTerminalOutput = errors.New("refusing to write PNG data to a terminal: use --out or redirect stdout")

type translateOptions struct {
	imagePath string
	prompt    string
	outPath   string
}

func newTranslateCmd(app *App) *cobra.Command {
	opts := &translateOptions{}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Transform a single image file with a prompt",
		Long: `translate sends one image and one prompt to Gemini and writes the generated PNG.

Without --out the PNG is written to stdout, which must not be a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTranslate(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.imagePath, "image", "i", "", "source image (png, jpg, webp)")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "transformation prompt")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "output PNG path (defaults to stdout)")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runTranslate(parent context.Context, app *App, opts *translateOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	toStdout := opts.outPath == "" || opts.outPath == "-"
	if toStdout && app.IsTerminal(app.Out) {
		return errTerminalOutput
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// 標準出力には画像を書き込むため、ログは標準エラー出力へ
	log := logger.New(cfg.Server.AppEnv, app.Err)

	image, err := readImageFile(ctx, opts.imagePath)
	if err != nil {
		return err
	}

	client, err := app.NewClient(ctx, &cfg.Gemini, log)
	if err != nil {
		return fmt.Errorf("Gemini APIクライアントの作成に失敗: %w", err)
	}

	controller := application.NewController(client, log, &application.ControllerConfig{
		GenerationTimeout: cfg.Gemini.GenerationTimeout,
	})
	if err := controller.UploadImage(image); err != nil {
		return fmt.Errorf("%s: %w", opts.imagePath, err)
	}
	controller.SetPrompt(opts.prompt)

	if err := controller.GenerateAndWait(ctx); err != nil {
		return errors.New(domain.UserMessage(err))
	}

	data, err := controller.Snapshot().Generated.Decode()
	if err != nil {
		return fmt.Errorf("生成画像のデコードに失敗: %w", err)
	}

	if toStdout {
		_, err = app.Out.Write(data)
		return err
	}

	if err := os.WriteFile(opts.outPath, data, 0o644); err != nil {
		return fmt.Errorf("出力ファイルの書き込みに失敗: %w", err)
	}
	fmt.Fprintf(app.Err, "Saved: %s (%s)\n", opts.outPath, humanize.Bytes(uint64(len(data))))
	return nil
}

// readImageFile は、画像ファイルを読み込み拡張子からメディアタイプを決定します
func readImageFile(ctx context.Context, path string) (domain.UploadedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.UploadedImage{}, &domain.UnreadableFileError{Name: path, Err: err}
	}
	defer f.Close()

	return imagecodec.Encode(ctx, f, path, imagecodec.MediaTypeFromFilename(path))
}
