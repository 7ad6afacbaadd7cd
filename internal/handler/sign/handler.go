package sign

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/signwave/backend/internal/model/sign"
	"github.com/signwave/backend/internal/service/avatar"
	"github.com/signwave/backend/pkg/utils"
)

// Handler 手语资源查询的HTTP处理器
type Handler struct {
	table     *sign.Table
	presenter *avatar.Presenter
}

// New 创建手语处理器
func New(table *sign.Table, presenter *avatar.Presenter) *Handler {
	return &Handler{
		table:     table,
		presenter: presenter,
	}
}

// RegisterRoutes 注册手语相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/signs", h.handleListSigns)
	r.Get("/avatar", h.handleAvatar)
}

// handleListSigns 列出查找表中的所有短语
func (h *Handler) handleListSigns(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.table.List())
}

// handleAvatar 返回文本对应的动画资源，未命中时返回待机动画
func (h *Handler) handleAvatar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	processing := false
	if raw := query.Get("processing"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "processing must be a boolean")
			return
		}
		processing = val
	}

	utils.RespondJSON(w, http.StatusOK, h.presenter.Present(r.Context(), query.Get("text"), processing))
}
