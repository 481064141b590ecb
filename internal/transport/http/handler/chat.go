package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"studymate/internal/app"
	"studymate/internal/transport/http/response"
)

type ChatHandler struct {
	chats  *app.ChatService
	titles *app.TitleService
}

type CreateChatRequest struct {
	Title string `json:"title"`
}

func NewChatHandler(chats *app.ChatService, titles *app.TitleService) *ChatHandler {
	return &ChatHandler{chats: chats, titles: titles}
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	// The body is optional; an empty one means an untitled chat.
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request payload")
		return
	}
	chat, err := h.chats.Create(c.Request.Context(), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	chats, err := h.chats.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, chats)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chats.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, messages)
}

// GenerateTitle names the chat from its documents right away instead of
// waiting for the title worker.
func (h *ChatHandler) GenerateTitle(c *gin.Context) {
	chatID := c.Param("id")
	title, err := h.titles.Generate(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"chat_id": chatID, "title": title})
}
