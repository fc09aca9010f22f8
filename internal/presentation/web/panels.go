package web

import (
	"html/template"
	"strconv"
	"strings"

	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/imagecodec"
)

// UploadPanel は、元画像スロットの表示内容です
type UploadPanel struct {
	HasImage    bool
	PreviewSrc  template.URL
	MediaType   string
	Dimensions  string
	Size        string
	Accept      string
	AcceptLabel string
}

// NewUploadPanel は、状態からアップロードパネルの表示内容を作成します
func NewUploadPanel(state domain.State) UploadPanel {
	panel := UploadPanel{
		Accept:      strings.Join(domain.AcceptedMediaTypes(), ", "),
		AcceptLabel: "PNG, JPG, WEBP",
	}
	if state.Image == nil {
		return panel
	}

	panel.HasImage = true
	panel.PreviewSrc = template.URL(state.Image.DataURI())
	panel.MediaType = state.Image.MediaType

	// ヘッダーが読めない場合も寸法なしでプレビューは表示する
	if info, err := imagecodec.Describe(*state.Image); err == nil {
		panel.Dimensions = formatDimensions(info.Width, info.Height)
		panel.Size = info.Size
	} else if info.Size != "" {
		panel.Size = info.Size
	}

	return panel
}

// ResultMode は、結果パネルの表示モードです
type ResultMode int

const (
	ResultPlaceholder ResultMode = iota
	ResultLoading
	ResultImage
)

// String はResultModeの名前を返します
func (m ResultMode) String() string {
	switch m {
	case ResultLoading:
		return "loading"
	case ResultImage:
		return "image"
	default:
		return "placeholder"
	}
}

// ResultPanel は、生成結果スロットの表示内容です
// 表示モードは読み込み中・画像・プレースホルダーのいずれか1つです
type ResultPanel struct {
	Mode     ResultMode
	ImageSrc template.URL
}

// NewResultPanel は、状態から結果パネルの表示内容を作成します
// 読み込み中の表示は画像やプレースホルダーより優先されます
func NewResultPanel(state domain.State) ResultPanel {
	switch {
	case state.Loading:
		return ResultPanel{Mode: ResultLoading}
	case !state.Generated.IsEmpty():
		return ResultPanel{Mode: ResultImage, ImageSrc: template.URL(state.Generated.DataURI())}
	default:
		return ResultPanel{Mode: ResultPlaceholder}
	}
}

// IsLoading はテンプレート用のヘルパーです
func (p ResultPanel) IsLoading() bool { return p.Mode == ResultLoading }

// HasImage はテンプレート用のヘルパーです
func (p ResultPanel) HasImage() bool { return p.Mode == ResultImage }

// GenerateButton は、生成ボタンの表示内容です
type GenerateButton struct {
	Disabled bool
	Label    string
}

// NewGenerateButton は、状態から生成ボタンの表示内容を作成します
func NewGenerateButton(state domain.State) GenerateButton {
	label := "Generate"
	if state.Loading {
		label = "Generating..."
	}
	return GenerateButton{
		Disabled: !state.CanGenerate(),
		Label:    label,
	}
}

// Page は、ページ全体の表示内容です
type Page struct {
	Upload  UploadPanel
	Result  ResultPanel
	Button  GenerateButton
	Prompt  string
	Error   string
	Notice  string
	Phase   string
	Refresh bool
}

// NewPage は、状態からページ全体の表示内容を作成します
func NewPage(state domain.State) Page {
	return Page{
		Upload:  NewUploadPanel(state),
		Result:  NewResultPanel(state),
		Button:  NewGenerateButton(state),
		Prompt:  state.Prompt,
		Error:   state.Error,
		Phase:   state.Phase().String(),
		Refresh: state.Loading,
	}
}

func formatDimensions(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	return strconv.Itoa(width) + "×" + strconv.Itoa(height)
}
