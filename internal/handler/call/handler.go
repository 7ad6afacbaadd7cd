package call

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	model "github.com/signwave/backend/internal/model/call"
	callService "github.com/signwave/backend/internal/service/call"
	"github.com/signwave/backend/pkg/utils"
)

// Handler 模拟视频通话的HTTP处理器
type Handler struct {
	calls    *callService.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New 创建通话处理器
func New(calls *callService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		calls: calls,
		log:   logger.With().Str("component", "call-handler").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册通话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calls", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{roomID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleEnd)
			r.Post("/join", h.handleJoin)
			r.Post("/mic", h.handleToggleMic)
			r.Post("/video", h.handleToggleVideo)
			r.Get("/link", h.handleLink)
			r.Get("/ws", h.handleWebSocket)
		})
	})
}

// handleCreate 创建通话房间，联系人为空时使用默认联系人
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ContactName string `json:"contactName"`
		Context     string `json:"context"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	callCtx, ok := model.ParseContext(payload.Context)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "context must be widget or page")
		return
	}

	session, err := h.calls.Create(r.Context(), payload.ContactName, callCtx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.calls.Get(r.Context(), chi.URLParam(r, "roomID"))
	h.respond(w, session, err)
}

// handleJoin 加入通话并开始播放模拟消息
func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DevicesGranted *bool `json:"devicesGranted"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	granted := true
	if payload.DevicesGranted != nil {
		granted = *payload.DevicesGranted
	}

	session, err := h.calls.Join(r.Context(), chi.URLParam(r, "roomID"), granted)
	h.respond(w, session, err)
}

func (h *Handler) handleToggleMic(w http.ResponseWriter, r *http.Request) {
	session, err := h.calls.ToggleMic(r.Context(), chi.URLParam(r, "roomID"))
	h.respond(w, session, err)
}

func (h *Handler) handleToggleVideo(w http.ResponseWriter, r *http.Request) {
	session, err := h.calls.ToggleVideo(r.Context(), chi.URLParam(r, "roomID"))
	h.respond(w, session, err)
}

// handleEnd 结束通话，清空记录并取消计时器
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	session, err := h.calls.End(r.Context(), chi.URLParam(r, "roomID"))
	h.respond(w, session, err)
}

// handleLink 返回可分享的通话链接
func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.calls.ShareLink(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (h *Handler) respond(w http.ResponseWriter, session model.Session, err error) {
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	utils.RespondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, callService.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, callService.ErrUnknownContext):
		return http.StatusBadRequest
	case errors.Is(err, callService.ErrCallActive), errors.Is(err, callService.ErrCallNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
