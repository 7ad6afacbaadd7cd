package call

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/signwave/backend/internal/model/call"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	outboxSize   = 32
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// JoinMessage 加入通话时上报的设备授权结果
type JoinMessage struct {
	DevicesGranted *bool `json:"devicesGranted,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 通过WebSocket推送通话消息，并接受开关麦克风/摄像头等指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	session, err := h.calls.Get(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Debug().Str("room", roomID).Msg("websocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox := make(chan outgoingMessage, outboxSize)
	enqueue := func(msg outgoingMessage) {
		msg.RoomID = roomID
		msg.Timestamp = time.Now().Unix()
		select {
		case outbox <- msg:
		case <-ctx.Done():
		default:
			h.log.Warn().Str("room", roomID).Str("type", msg.Type).Msg("websocket outbox full, dropping message")
		}
	}

	unsubscribe, err := h.calls.Subscribe(ctx, roomID, func(e model.Event) {
		enqueue(outgoingMessage{Type: e.Type, Data: e})
	})
	if err != nil {
		h.writeClose(conn, websocket.CloseNormalClosure, err.Error())
		return
	}
	defer unsubscribe()

	enqueue(outgoingMessage{Type: "connected", Data: model.Event{Type: model.EventState, Session: session}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, outbox)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("room", roomID).Msg("websocket read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if h.handleMessage(ctx, roomID, &msg, enqueue) {
			break
		}
	}

	cancel()
	<-done
}

// handleMessage 处理客户端指令，返回 true 表示通话已结束
func (h *Handler) handleMessage(ctx context.Context, roomID string, msg *inboundMessage, enqueue func(outgoingMessage)) bool {
	var err error
	switch msg.Type {
	case "join":
		var payload JoinMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				enqueue(errorMessage("invalid join payload"))
				return false
			}
		}
		granted := payload.DevicesGranted == nil || *payload.DevicesGranted
		_, err = h.calls.Join(ctx, roomID, granted)
	case "toggle_mic":
		_, err = h.calls.ToggleMic(ctx, roomID)
	case "toggle_video":
		_, err = h.calls.ToggleVideo(ctx, roomID)
	case "end":
		if _, err = h.calls.End(ctx, roomID); err == nil {
			return true
		}
	case "ping":
		enqueue(outgoingMessage{Type: "pong"})
		return false
	default:
		enqueue(errorMessage("unsupported message type: " + msg.Type))
		return false
	}

	if err != nil {
		enqueue(errorMessage(err.Error()))
		return false
	}
	return false
}

// writeLoop 是连接唯一的写入方，负责下发消息与心跳
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan outgoingMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drain(conn, outbox)
			h.writeClose(conn, websocket.CloseNormalClosure, "")
			return
		case msg := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
			if msg.Type == model.EventEnded {
				h.writeClose(conn, websocket.CloseNormalClosure, "call ended")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) drain(conn *websocket.Conn, outbox <-chan outgoingMessage) {
	for {
		select {
		case msg := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Handler) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

func errorMessage(message string) outgoingMessage {
	return outgoingMessage{
		Type: "error",
		Data: map[string]string{"message": message},
	}
}
