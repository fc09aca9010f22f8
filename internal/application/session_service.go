package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ControllerRepository は、セッションごとのControllerを保持するリポジトリのインターフェースです
type ControllerRepository interface {
	// Get は、指定されたセッションのControllerを取得します
	Get(ctx context.Context, sessionID string) (*Controller, error)

	// GetOrCreate は、指定されたセッションのControllerを取得し、存在しない場合はcreateで作成して保存します
	// 2つ目の戻り値は新しく作成したかどうかです
	GetOrCreate(ctx context.Context, sessionID string, create func() *Controller) (*Controller, bool, error)

	// Delete は、指定されたセッションを削除します
	Delete(ctx context.Context, sessionID string) error

	// DeleteIdle は、最終操作がcutoffより前のセッションを削除し、削除件数を返します
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionService は、ブラウザセッションやチャンネルごとのControllerを管理するアプリケーションサービスです
type SessionService struct {
	repo   ControllerRepository
	client GenerationClient
	config *ControllerConfig
	logger zerolog.Logger
}

// NewSessionService は新しいSessionServiceインスタンスを作成します
func NewSessionService(repo ControllerRepository, client GenerationClient, config *ControllerConfig, logger zerolog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		client: client,
		config: config,
		logger: logger,
	}
}

// Open は、セッションのControllerを取得し、存在しない場合は新規作成します
func (s *SessionService) Open(ctx context.Context, sessionID string) (*Controller, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("セッションIDが空です")
	}

	controller, created, err := s.repo.GetOrCreate(ctx, sessionID, func() *Controller {
		return NewController(s.client, s.logger.With().Str("session", sessionID).Logger(), s.config)
	})
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: %w", err)
	}

	if created {
		s.logger.Debug().Str("session", sessionID).Msg("新しいセッションを作成しました")
	}
	return controller, nil
}

// Lookup は、既存セッションのControllerを取得します
func (s *SessionService) Lookup(ctx context.Context, sessionID string) (*Controller, error) {
	return s.repo.Get(ctx, sessionID)
}

// Close は、セッションを破棄します
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// Sweep は、idleより長く操作されていないセッションを削除します
func (s *SessionService) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	removed, err := s.repo.DeleteIdle(ctx, time.Now().Add(-idle))
	if err != nil {
		return 0, fmt.Errorf("セッションの掃除に失敗: %w", err)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("期限切れのセッションを削除しました")
	}
	return removed, nil
}

// RunSweeper は、ctxが終了するまで定期的にSweepを実行します
func (s *SessionService) RunSweeper(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}

	interval := idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, idle); err != nil {
				s.logger.Warn().Err(err).Msg("セッション掃除でエラーが発生")
			}
		}
	}
}
