package handler

import (
	"github.com/gin-gonic/gin"

	"studymate/internal/app"
	"studymate/internal/transport/http/middleware"
	"studymate/internal/transport/http/response"
)

type ProgressHandler struct {
	progress *app.ProgressService
}

func NewProgressHandler(progress *app.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func (h *ProgressHandler) List(c *gin.Context) {
	rows, err := h.progress.List(c.Request.Context(), middleware.UserIDFrom(c, c.Query("user_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, rows)
}
