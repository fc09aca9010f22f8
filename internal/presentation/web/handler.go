package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"pix2pix/internal/application"
	"pix2pix/internal/domain"
	"pix2pix/internal/infrastructure/config"
	"pix2pix/internal/infrastructure/imagecodec"

	"github.com/rs/zerolog"
)

//go:embed templates
var templateFS embed.FS

// 画像アップロードのフォームフィールド名
const (
	uploadField  = "image"
	dataURIField = "image_data_uri"
)

// Handler は、ブラウザ向けのHTTPハンドラです
type Handler struct {
	sessions       *application.SessionService
	logger         zerolog.Logger
	maxUploadBytes int64
	page           *template.Template
	static         http.Handler
}

// NewHandler は新しいHandlerインスタンスを作成します
func NewHandler(sessions *application.SessionService, serverConfig *config.ServerConfig, logger zerolog.Logger) (*Handler, error) {
	if serverConfig == nil {
		serverConfig = config.DefaultServerConfig()
	}

	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	staticFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}

	return &Handler{
		sessions:       sessions,
		logger:         logger.With().Str("component", "web").Logger(),
		maxUploadBytes: serverConfig.MaxUploadBytes,
		page:           page,
		static:         http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
	}, nil
}

// index は、現在の状態でページを描画します
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, controllerFrom(r.Context()).Snapshot(), "")
}

// uploadImage は、送信された画像を元画像として設定します
// multipartのファイル、またはデータURI形式のフォーム値を受け付けます
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var (
		image domain.UploadedImage
		name  string
		ok    bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		image, name, ok = h.readMultipartImage(w, r)
	} else {
		image, name, ok = h.readDataURIImage(w, r)
	}
	if !ok {
		return
	}

	if err := controller.UploadImage(image); err != nil {
		h.fail(w, r, http.StatusUnsupportedMediaType, "Only PNG, JPG and WEBP images are supported.")
		return
	}

	h.logger.Info().Str("file", name).Str("media_type", image.MediaType).Int("encoded_len", len(image.EncodedBytes)).Msg("画像を受け付けました")
	h.done(w, r, controller)
}

// readMultipartImage は、multipartのファイルフィールドから画像を読み取ります
func (h *Handler) readMultipartImage(w http.ResponseWriter, r *http.Request) (domain.UploadedImage, string, bool) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.failParse(w, r, err)
		return domain.UploadedImage{}, "", false
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Please choose an image file.")
		return domain.UploadedImage{}, "", false
	}
	defer file.Close()

	image, err := imagecodec.Encode(r.Context(), file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Warn().Err(err).Str("file", header.Filename).Msg("アップロードファイルの読み取りに失敗")
		h.fail(w, r, http.StatusBadRequest, "The selected file could not be read.")
		return domain.UploadedImage{}, "", false
	}
	return image, header.Filename, true
}

// readDataURIImage は、ブラウザのFileReaderが作るデータURIから画像を読み取ります
func (h *Handler) readDataURIImage(w http.ResponseWriter, r *http.Request) (domain.UploadedImage, string, bool) {
	if err := r.ParseForm(); err != nil {
		h.failParse(w, r, err)
		return domain.UploadedImage{}, "", false
	}

	uri := r.PostForm.Get(dataURIField)
	if uri == "" {
		h.fail(w, r, http.StatusBadRequest, "Please choose an image file.")
		return domain.UploadedImage{}, "", false
	}

	image, err := imagecodec.FromDataURI(uri, r.PostForm.Get("media_type"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("データURIの読み取りに失敗")
		h.fail(w, r, http.StatusBadRequest, "The selected file could not be read.")
		return domain.UploadedImage{}, "", false
	}
	return image, dataURIField, true
}

func (h *Handler) failParse(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.fail(w, r, http.StatusRequestEntityTooLarge, "The selected file is too large.")
		return
	}
	h.fail(w, r, http.StatusBadRequest, "The upload could not be read.")
}

// removeImage は、元画像のみをクリアします
func (h *Handler) removeImage(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())
	controller.RemoveImage()
	h.done(w, r, controller)
}

// setPrompt は、プロンプトを置き換えます
func (h *Handler) setPrompt(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	controller.SetPrompt(r.PostForm.Get("prompt"))
	h.done(w, r, controller)
}

// generate は、生成を開始します
// フォームにpromptが含まれる場合は先にプロンプトを更新します
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	if _, ok := r.PostForm["prompt"]; ok {
		controller.SetPrompt(r.PostForm.Get("prompt"))
	}

	// 検証エラーは状態に反映済みのため、そのまま描画する
	if _, err := controller.Generate(r.Context()); err != nil && !errors.Is(err, domain.ErrValidation) {
		h.logger.Error().Err(err).Msg("生成の開始に失敗")
	}
	h.done(w, r, controller)
}

// reset は、状態を初期化します
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())
	controller.Reset()
	h.done(w, r, controller)
}

// state は、現在の状態をJSONで返します
func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(controllerFrom(r.Context()).Snapshot()))
}

// health は、死活監視用のエンドポイントです
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// done は、JSONを要求するクライアントには状態を返し、それ以外はトップページへリダイレクトします
func (h *Handler) done(w http.ResponseWriter, r *http.Request, controller *application.Controller) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, NewStateView(controller.Snapshot()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail は、リクエスト自体の不備をクライアントに伝えます
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": message})
		return
	}
	h.render(w, r, status, controllerFrom(r.Context()).Snapshot(), message)
}

func (h *Handler) render(w http.ResponseWriter, _ *http.Request, status int, state domain.State, notice string) {
	page := NewPage(state)
	page.Notice = notice

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := h.page.Execute(w, page); err != nil {
		h.logger.Error().Err(err).Msg("テンプレートの描画に失敗")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StateView は、状態のJSON表現です
type StateView struct {
	Phase          string `json:"phase"`
	Status         string `json:"status"`
	HasImage       bool   `json:"has_image"`
	ImageMediaType string `json:"image_media_type,omitempty"`
	ImageDataURI   string `json:"image_data_uri,omitempty"`
	Prompt         string `json:"prompt"`
	GeneratedImage string `json:"generated_image_data_uri,omitempty"`
	Loading        bool   `json:"loading"`
	Error          string `json:"error,omitempty"`
	CanGenerate    bool   `json:"can_generate"`
	Seq            uint64 `json:"seq"`
}

// NewStateView は、状態からJSON表現を作成します
func NewStateView(state domain.State) StateView {
	view := StateView{
		Phase:          state.Phase().String(),
		Status:         state.Status.String(),
		HasImage:       state.HasImage(),
		Prompt:         state.Prompt,
		GeneratedImage: state.Generated.DataURI(),
		Loading:        state.Loading,
		Error:          state.Error,
		CanGenerate:    state.CanGenerate(),
		Seq:            state.Seq,
	}
	if state.Image != nil {
		view.ImageMediaType = state.Image.MediaType
		view.ImageDataURI = state.Image.DataURI()
	}
	return view
}

type controllerKey struct{}

func withController(ctx context.Context, controller *application.Controller) context.Context {
	return context.WithValue(ctx, controllerKey{}, controller)
}

func controllerFrom(ctx context.Context) *application.Controller {
	controller, _ := ctx.Value(controllerKey{}).(*application.Controller)
	return controller
}
