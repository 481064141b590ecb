package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studymate/internal/app"
	"studymate/internal/transport/http/middleware"
	"studymate/internal/transport/http/response"
)

type QuizHandler struct {
	quizzes *app.QuizService
	grading *app.GradingService
}

type GenerateQuizRequest struct {
	ChatID string `json:"chat_id"`
}

type SubmitQuizRequest struct {
	UserID  string            `json:"user_id"`
	Answers map[string]string `json:"answers"`
}

func NewQuizHandler(quizzes *app.QuizService, grading *app.GradingService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, grading: grading}
}

func (h *QuizHandler) Generate(c *gin.Context) {
	var req GenerateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	quiz, err := h.quizzes.Generate(c.Request.Context(), req.ChatID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, quiz)
}

// Submit grades answers keyed by question id.
func (h *QuizHandler) Submit(c *gin.Context) {
	quizID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || quizID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodePayloadInvalid, "invalid quiz id")
		return
	}
	var req SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	result, err := h.grading.Grade(c.Request.Context(), app.GradeInput{
		QuizID:  uint(quizID),
		UserID:  middleware.UserIDFrom(c, req.UserID),
		Answers: req.Answers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}
