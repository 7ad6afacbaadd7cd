package history

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/call"
	historyService "github.com/signwave/backend/internal/service/history"
	"github.com/signwave/backend/pkg/utils"
)

// Handler 通话记录与自定义手势的HTTP处理器
type Handler struct {
	store *historyService.Store
	log   zerolog.Logger
}

// New 创建通话记录处理器
func New(store *historyService.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   logger.With().Str("component", "history-handler").Logger(),
	}
}

// RegisterRoutes 注册通话记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.handleListHistory)
	r.Get("/custom-signs", h.handleListCustomSigns)
	r.Post("/custom-signs", h.handleAddCustomSign)
}

// handleListHistory 按加入顺序列出联系人
func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Entries(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load call history")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load call history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListCustomSigns(w http.ResponseWriter, r *http.Request) {
	signs, err := h.store.CustomSigns(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load custom signs")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load custom signs")
		return
	}
	utils.RespondJSON(w, http.StatusOK, signs)
}

// handleAddCustomSign 新增自定义手势
func (h *Handler) handleAddCustomSign(w http.ResponseWriter, r *http.Request) {
	var payload call.CustomSign
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signs, err := h.store.AddCustomSign(r.Context(), payload)
	if err != nil {
		if errors.Is(err, historyService.ErrGestureRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to add custom sign")
		utils.RespondError(w, http.StatusInternalServerError, "failed to add custom sign")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, signs)
}
