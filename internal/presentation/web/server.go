package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server は、http.Serverの起動と停止をまとめたラッパーです
type Server struct {
	server *http.Server
	cancel context.CancelFunc
}

// NewServer は、設定済みのServerを作成します
// SSEを長時間維持するため、WriteTimeoutは設定しません
func NewServer(addr string, handler http.Handler) *Server {
	// Shutdown時にSSEなどの長時間リクエストを終了させるための親Context
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		cancel: cancel,
	}
}

// Start は、現在のgoroutineでサーバーを実行します。Shutdownによる停止はエラーにしません
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は、サーバーを正常に停止します
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}
