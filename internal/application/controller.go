package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"pix2pix/internal/domain"

	"github.com/rs/zerolog"
)

// ErrGenerationInProgress は、GenerateAndWaitが実行中の生成と衝突した場合のエラーです
var ErrGenerationInProgress = errors.New("画像生成はすでに実行中です")

// ControllerConfig は、コントローラーの動作設定です
type ControllerConfig struct {
	// GenerationTimeout は1回の生成の期限です。0の場合は期限を設けません
	GenerationTimeout time.Duration
}

// Observer は、状態変更の通知を受け取る関数です
type Observer func(state domain.State)

// Controller は、アップロード画像・プロンプト・生成結果・処理中フラグ・エラーを所有し、
// 生成操作を統括するアプリケーションサービスです
type Controller struct {
	client  GenerationClient
	logger  zerolog.Logger
	timeout time.Duration

	mu         sync.Mutex
	state      domain.State
	observers  map[uint64]Observer
	observerID uint64
	touchedAt  time.Time
}

// generation は、1回の生成の完了通知と結果のエラーです
// errはdoneのクローズ前に設定されます
type generation struct {
	done chan struct{}
	err  error
}

// NewController は新しいControllerインスタンスを作成します
func NewController(client GenerationClient, logger zerolog.Logger, config *ControllerConfig) *Controller {
	if config == nil {
		config = &ControllerConfig{}
	}

	return &Controller{
		client:    client,
		logger:    logger,
		timeout:   config.GenerationTimeout,
		observers: make(map[uint64]Observer),
		touchedAt: time.Now(),
	}
}

// Snapshot は、現在の状態のコピーを返します
func (c *Controller) Snapshot() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// LastActivity は、最後に操作された時刻を返します
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touchedAt
}

// Subscribe は、状態変更の通知先を登録し、登録解除用の関数を返します
func (c *Controller) Subscribe(observer Observer) (unsubscribe func()) {
	c.mu.Lock()
	c.observerID++
	id := c.observerID
	c.observers[id] = observer
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// UploadImage は、元画像を差し替えます。生成画像とエラーはクリアされます
func (c *Controller) UploadImage(image domain.UploadedImage) error {
	if err := image.Validate(); err != nil {
		c.logger.Warn().Err(err).Str("media_type", image.MediaType).Msg("アップロード画像の検証に失敗")
		return err
	}

	c.dispatch(domain.ImageUploaded{Image: image})
	c.logger.Debug().Str("media_type", image.MediaType).Int("encoded_len", len(image.EncodedBytes)).Msg("画像をアップロードしました")
	return nil
}

// RemoveImage は、元画像のみをクリアします
func (c *Controller) RemoveImage() {
	c.dispatch(domain.ImageRemoved{})
}

// SetPrompt は、プロンプトを置き換えます
func (c *Controller) SetPrompt(prompt string) {
	c.dispatch(domain.PromptChanged{Prompt: prompt})
}

// Reset は、状態を初期化します。実行中の生成は最後まで走りますが結果は破棄されます
func (c *Controller) Reset() {
	c.dispatch(domain.Reset{})
}

// Generate は生成を開始します
//
// 画像またはプロンプトが無い場合は検証エラーを状態に設定し、domain.ErrValidationを返します。
// すでに生成中の場合は何もせず (nil, nil) を返します。
// 開始した場合、戻り値のチャネルは結果が状態に反映された後にクローズされます。
// 生成は呼び出し元のキャンセルとは切り離されて実行されます。
func (c *Controller) Generate(ctx context.Context) (<-chan struct{}, error) {
	g, err := c.start(ctx)
	if g == nil {
		return nil, err
	}
	return g.done, nil
}

// start は生成を開始し、開始した場合はその実行を返します
func (c *Controller) start(ctx context.Context) (*generation, error) {
	c.mu.Lock()
	c.touchedAt = time.Now()

	if c.state.Loading {
		c.mu.Unlock()
		c.logger.Debug().Msg("生成中のため生成要求を無視します")
		return nil, nil
	}

	if c.state.Image == nil || c.state.Prompt == "" {
		state, observers := c.applyLocked(domain.GenerationRejected{})
		c.mu.Unlock()
		c.notify(observers, state)
		return nil, domain.ErrValidation
	}

	seq := c.state.Seq + 1
	image := *c.state.Image
	prompt := c.state.Prompt
	state, observers := c.applyLocked(domain.GenerationStarted{Seq: seq})
	c.mu.Unlock()
	c.notify(observers, state)

	c.logger.Info().Uint64("seq", seq).Str("media_type", image.MediaType).Int("prompt_len", len(prompt)).Msg("画像生成を開始します")

	g := &generation{done: make(chan struct{})}
	go c.run(context.WithoutCancel(ctx), seq, image, prompt, g)
	return g, nil
}

// GenerateAndWait は、生成を開始して結果が反映されるまで待機します
// ctxがキャンセルされた場合は待機のみを中断し、生成自体は継続します
// 戻り値は、この呼び出しで開始した生成のエラーです
func (c *Controller) GenerateAndWait(ctx context.Context) error {
	g, err := c.start(ctx)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGenerationInProgress
	}

	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run は、生成クライアントを呼び出して結果を状態に反映します
func (c *Controller) run(ctx context.Context, seq uint64, image domain.UploadedImage, prompt string, g *generation) {
	defer close(g.done)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.translate(ctx, image, prompt)
	if err == nil && result.IsEmpty() {
		err = domain.ErrNoImageInResponse
	}

	var event domain.Event
	if err != nil {
		c.logger.Error().Err(err).Uint64("seq", seq).Dur("elapsed", time.Since(start)).Msg("画像生成に失敗")
		event = domain.GenerationFailed{Seq: seq, Message: domain.UserMessage(err)}
	} else {
		c.logger.Info().Uint64("seq", seq).Dur("elapsed", time.Since(start)).Msg("画像生成が完了しました")
		event = domain.GenerationSucceeded{Seq: seq, Image: result}
	}

	g.err = err

	c.mu.Lock()
	if c.state.Seq != seq || c.state.Superseded {
		c.logger.Info().Uint64("seq", seq).Uint64("latest_seq", c.state.Seq).Msg("古い生成結果を破棄します")
	}
	state, observers := c.applyLocked(event)
	c.mu.Unlock()
	c.notify(observers, state)
}

// translate は、クライアント内のpanicをUnknownGenerationErrorに変換します
// その他のエラーはGenerationFailedErrorに包みます
func (c *Controller) translate(ctx context.Context, image domain.UploadedImage, prompt string) (result domain.GeneratedImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = &domain.UnknownGenerationError{Value: r}
		}
	}()
	result, err = c.client.Translate(ctx, image, prompt)
	return result, wrapGenerationError(err)
}

// wrapGenerationError は、分類されていないエラーをGenerationFailedErrorとして扱います
func wrapGenerationError(err error) error {
	if err == nil || errors.Is(err, domain.ErrNoImageInResponse) {
		return err
	}
	var failed *domain.GenerationFailedError
	var unknown *domain.UnknownGenerationError
	if errors.As(err, &failed) || errors.As(err, &unknown) {
		return err
	}
	return &domain.GenerationFailedError{Err: err}
}

// dispatch は、イベントを適用して監視者に通知します
func (c *Controller) dispatch(event domain.Event) domain.State {
	c.mu.Lock()
	c.touchedAt = time.Now()
	state, observers := c.applyLocked(event)
	c.mu.Unlock()

	c.notify(observers, state)
	return state
}

// applyLocked は、c.muを保持した状態で呼び出す必要があります
func (c *Controller) applyLocked(event domain.Event) (domain.State, []Observer) {
	c.state = domain.Reduce(c.state, event)

	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	return c.state.Clone(), observers
}

func (c *Controller) notify(observers []Observer, state domain.State) {
	for _, o := range observers {
		o(state.Clone())
	}
}
