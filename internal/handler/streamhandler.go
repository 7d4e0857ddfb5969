package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/watch"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamPongWait   = 60 * time.Second
	streamBuffer     = 32
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamFrame struct {
	Type     string              `json:"type"`
	Snapshot *types.SnapshotResp `json:"snapshot,omitempty"`
}

// StreamHandler upgrades to a websocket and subscribes the socket to the
// requested tokens. Every recorded snapshot becomes one JSON frame; closing
// the socket cancels its subscriptions. A subscription that would exceed the
// tracking capacity closes the socket with a policy violation frame.
func StreamHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbols := market.CanonicalAll(strings.Split(r.URL.Query().Get("symbols"), ","))
		if len(symbols) == 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "symbols query parameter is required")
			return
		}

		conn, err := streamUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("stream: upgrade: %v", err)
			return
		}

		outbound := make(chan streamFrame, streamBuffer)
		done := make(chan struct{})
		push := func(snap *types.SnapshotResp) {
			frame := streamFrame{Type: "snapshot", Snapshot: snap}
			// Listener callbacks must never block the engine; a slow consumer
			// misses frames instead.
			select {
			case outbound <- frame:
			case <-done:
			default:
			}
		}

		var subs []*watch.Subscription
		cancelAll := func() {
			for _, sub := range subs {
				sub.Cancel()
			}
		}

		for _, symbol := range symbols {
			sub, err := svcCtx.Engine.Subscribe(symbol, watch.ListenerFunc(func(snap *market.TokenSnapshot) {
				push(snapshotResp(snap))
			}))
			if err != nil {
				cancelAll()
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
				_ = conn.Close()
				return
			}
			subs = append(subs, sub)
			if snap, ok := svcCtx.Engine.Snapshot(symbol); ok {
				push(snapshotResp(snap))
			}
		}

		go streamWriter(conn, outbound, done)

		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancelAll()
		close(done)
		_ = conn.Close()
	}
}

func streamWriter(conn *websocket.Conn, outbound <-chan streamFrame, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
