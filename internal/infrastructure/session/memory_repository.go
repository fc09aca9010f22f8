package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pix2pix/internal/application"
	"pix2pix/internal/domain"
)

// MemoryRepository は、ControllerRepositoryのメモリ実装です
// 永続化は行わず、プロセスの終了とともにすべてのセッションが失われます
type MemoryRepository struct {
	controllers map[string]*application.Controller
	mutex       sync.RWMutex
}

// NewMemoryRepository は新しいMemoryRepositoryインスタンスを作成します
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		controllers: make(map[string]*application.Controller),
	}
}

// Get は、指定されたセッションのControllerを取得します
func (r *MemoryRepository) Get(ctx context.Context, sessionID string) (*application.Controller, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	controller, exists := r.controllers[sessionID]
	if !exists {
		return nil, fmt.Errorf("セッション %s: %w", sessionID, domain.ErrSessionNotFound)
	}

	return controller, nil
}

// GetOrCreate は、指定されたセッションのControllerを返し、存在しない場合はcreateで作成して保存します
// 確認と保存は同じ書き込みロックの中で行うため、同時に呼ばれても作成は1回だけです
func (r *MemoryRepository) GetOrCreate(ctx context.Context, sessionID string, create func() *application.Controller) (*application.Controller, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if controller, exists := r.controllers[sessionID]; exists {
		return controller, false, nil
	}

	controller := create()
	if controller == nil {
		return nil, false, fmt.Errorf("Controllerがnilです")
	}
	r.controllers[sessionID] = controller
	return controller, true, nil
}

// Delete は、指定されたセッションを削除します
func (r *MemoryRepository) Delete(ctx context.Context, sessionID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.controllers[sessionID]; !exists {
		return fmt.Errorf("セッション %s: %w", sessionID, domain.ErrSessionNotFound)
	}

	delete(r.controllers, sessionID)
	return nil
}

// DeleteIdle は、最終操作がcutoffより前で生成中でないセッションを削除します
func (r *MemoryRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for id, controller := range r.controllers {
		if controller.LastActivity().Before(cutoff) && !controller.Snapshot().Loading {
			delete(r.controllers, id)
			removed++
		}
	}
	return removed, nil
}
