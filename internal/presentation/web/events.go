package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pix2pix/internal/domain"
)

// keepAliveInterval は、SSE接続を維持するためのコメント送信間隔です
const keepAliveInterval = 25 * time.Second

// events は、状態が変わるたびにServer-Sent Eventsで通知します
// 接続直後に現在の状態を1回送信します
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	controller := controllerFrom(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// 遅い購読者で状態更新を止めないよう、最新の状態だけを保持する
	updates := make(chan domain.State, 1)
	unsubscribe := controller.Subscribe(func(state domain.State) {
		select {
		case updates <- state:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- state:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := writeEvent(w, rc, controller.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case state := <-updates:
			if err := writeEvent(w, rc, state); err != nil {
				h.logger.Debug().Err(err).Msg("SSEの送信に失敗")
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, state domain.State) error {
	data, err := json.Marshal(NewStateView(state))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
