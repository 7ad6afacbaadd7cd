package flow

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	model "github.com/signwave/backend/internal/model/flow"
	flowService "github.com/signwave/backend/internal/service/flow"
	"github.com/signwave/backend/pkg/utils"
)

const (
	heartbeatInterval = 15 * time.Second
	eventBuffer       = 16
)

// Handler 演示流程的HTTP处理器
type Handler struct {
	flows *flowService.Service
	log   zerolog.Logger
}

// New 创建流程处理器
func New(flows *flowService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		flows: flows,
		log:   logger.With().Str("component", "flow-handler").Logger(),
	}
}

// RegisterRoutes 注册流程相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/flows", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{flowID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleClose)
			r.Post("/start", h.handleStart)
			r.Post("/device", h.handleDevice)
			r.Post("/submit", h.handleSubmit)
			r.Post("/stop", h.handleStop)
			r.Post("/reset", h.handleReset)
			r.Post("/speak", h.handleSpeak)
			r.Get("/events", h.handleEvents)
		})
	})
}

// handleCreate 创建流程实例
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Kind string `json:"kind"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, ok := model.ParseKind(payload.Kind)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "kind must be one of sign-to-text, text-to-sign, voice")
		return
	}

	snap, err := h.flows.Create(r.Context(), kind)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.flows.Get(r.Context(), chi.URLParam(r, "flowID"))
	h.respond(w, snap, err)
}

// handleClose 释放流程并取消未完成的计时
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.flows.Close(r.Context(), chi.URLParam(r, "flowID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.flows.Start(r.Context(), chi.URLParam(r, "flowID"))
	h.respond(w, snap, err)
}

// handleDevice 浏览器上报摄像头/麦克风的授权结果
func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Granted *bool  `json:"granted"`
		Reason  string `json:"reason"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Granted == nil {
		utils.RespondError(w, http.StatusBadRequest, "granted is required")
		return
	}

	snap, err := h.flows.ReportDevice(r.Context(), chi.URLParam(r, "flowID"), *payload.Granted, payload.Reason)
	h.respond(w, snap, err)
}

// handleSubmit 提交待翻译文本，空文本直接拒绝
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.flows.Submit(r.Context(), chi.URLParam(r, "flowID"), payload.Text)
	h.respond(w, snap, err)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Short bool `json:"short"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.flows.Stop(r.Context(), chi.URLParam(r, "flowID"), payload.Short)
	h.respond(w, snap, err)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.flows.Reset(r.Context(), chi.URLParam(r, "flowID"))
	h.respond(w, snap, err)
}

// handleSpeak 通知订阅方朗读当前结果，浏览器负责语音合成
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	snap, err := h.flows.Speak(r.Context(), chi.URLParam(r, "flowID"))
	h.respond(w, snap, err)
}

// handleEvents 以SSE推送流程状态变化
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan model.Event, eventBuffer)
	// closed 在事件缓冲已满时也能结束推送
	closed := make(chan struct{})
	var closeOnce sync.Once
	unsubscribe, err := h.flows.Subscribe(r.Context(), flowID, func(e model.Event) {
		select {
		case events <- e:
		default:
			h.log.Warn().Str("flow", flowID).Str("event", e.Type).Msg("subscriber too slow, dropping event")
		}
		if e.Type == model.EventClosed {
			closeOnce.Do(func() { close(closed) })
		}
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer unsubscribe()

	snap, err := h.flows.Get(r.Context(), flowID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	h.log.Debug().Str("flow", flowID).Msg("opening event stream")

	if err := utils.SendSSEEvent(w, flusher, model.EventState, model.Event{Type: model.EventState, Snapshot: snap}); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("flow", flowID).Msg("closing event stream")
			return
		case e := <-events:
			if err := utils.SendSSEEvent(w, flusher, e.Type, e); err != nil {
				return
			}
			if e.Type == model.EventClosed {
				h.log.Debug().Str("flow", flowID).Msg("flow closed, ending event stream")
				return
			}
		case <-closed:
			h.flushPending(w, flusher, events)
			h.log.Debug().Str("flow", flowID).Msg("flow closed, ending event stream")
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

// flushPending 发送关闭前仍在缓冲中的事件
func (h *Handler) flushPending(w http.ResponseWriter, flusher http.Flusher, events <-chan model.Event) {
	for {
		select {
		case e := <-events:
			if err := utils.SendSSEEvent(w, flusher, e.Type, e); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Handler) respond(w http.ResponseWriter, snap model.Snapshot, err error) {
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flowService.ErrFlowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, flowService.ErrUnknownKind), errors.Is(err, flowService.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, flowService.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, flowService.ErrClosed):
		status = http.StatusGone
	default:
		h.log.Error().Err(err).Msg("flow request failed")
	}
	utils.RespondError(w, status, err.Error())
}
