package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studymate/internal/app"
	"studymate/internal/transport/http/middleware"
)

type AnswerHandler struct {
	answers *app.AnswerService
}

type AnswerRequest struct {
	ChatID   string     `json:"chat_id"`
	ScopeKey string     `json:"scope_key"`
	UserID   string     `json:"user_id"`
	Question string     `json:"question"`
	History  []app.Turn `json:"history"`
}

func NewAnswerHandler(answers *app.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

// Answer streams the reply as plain text. Headers go out with the first
// token, so anything that fails before then still gets a JSON error.
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	prepared, err := h.answers.Prepare(c.Request.Context(), app.AnswerInput{
		ChatID:   req.ChatID,
		ScopeKey: req.ScopeKey,
		UserID:   middleware.UserIDFrom(c, req.UserID),
		Question: req.Question,
		History:  req.History,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	_, err = h.answers.Stream(c.Request.Context(), prepared, func(token string) error {
		start()
		if _, err := io.WriteString(c.Writer, token); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeError(c, err)
			return
		}
		middleware.Logger(c).Warn("answer stream interrupted", zap.String("chat_id", prepared.ChatID), zap.Error(err))
		return
	}
	start()
	c.Writer.WriteHeaderNow()
}
