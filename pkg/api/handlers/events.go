package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"whisperboard/pkg/logger"
	"whisperboard/pkg/notify"
	"whisperboard/pkg/utils"
	"whisperboard/pkg/validation"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin enforcement happens in the security middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterEvents registers the topic event stream route.
func RegisterEvents(r *mux.Router, hub *notify.Hub) {
	r.HandleFunc("/topics/{topic}/events", streamTopic(hub)).Methods(http.MethodGet)
}

// streamTopic handles GET /topics/{topic}/events, upgrading to a websocket
// and pumping every broadcast for that topic to the peer as a JSON frame.
// A peer that cannot keep up is dropped by the hub, which closes the
// subscription channel and ends the stream.
func streamTopic(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := mux.Vars(r)["topic"]
		if err := validation.ValidateTopic(topic); err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws_upgrade_failed", zap.String("topic", topic), zap.Error(err))
			return
		}
		sub := hub.Subscribe(topic)
		logger.Info("ws_subscribed", zap.String("topic", topic), zap.String("remote", r.RemoteAddr))

		// reader: discard inbound frames, notice the peer going away
		go func() {
			defer sub.Cancel()
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			sub.Cancel()
			_ = conn.Close()
		}()
		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber lagged"),
						time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("ws_write_failed", zap.String("topic", topic), zap.Error(err))
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
