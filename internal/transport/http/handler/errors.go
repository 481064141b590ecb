package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studymate/internal/app"
	"studymate/internal/transport/http/middleware"
	"studymate/internal/transport/http/response"
)

// writeError maps an application error onto the envelope. Client mistakes
// keep their message; server-side failures expose only the error kind.
func writeError(c *gin.Context, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		middleware.Logger(c).Error("request failed", zap.Int("code", code), zap.Error(err))
	}
	response.Error(c, status, code, message)
}

func classify(err error) (int, int, string) {
	var malformed *app.MalformedResponseError
	switch {
	case errors.Is(err, app.ErrDocumentLimit):
		return http.StatusBadRequest, response.CodeDocumentLimit, err.Error()
	case errors.Is(err, app.ErrEmptyDocument):
		return http.StatusBadRequest, response.CodeEmptyDocument, app.ErrEmptyDocument.Error()
	case errors.Is(err, app.ErrPayloadInvalid):
		return http.StatusBadRequest, response.CodePayloadInvalid, err.Error()
	case errors.As(err, &malformed):
		return http.StatusInternalServerError, response.CodeResponseMalformed, malformed.Error()
	case errors.Is(err, app.ErrResponseMalformed):
		return http.StatusInternalServerError, response.CodeResponseMalformed, app.ErrResponseMalformed.Error()
	case errors.Is(err, app.ErrTopicsMissing):
		return http.StatusInternalServerError, response.CodeTopicsMissing, "no topics found for this chat"
	case errors.Is(err, app.ErrNoDocuments):
		return http.StatusInternalServerError, response.CodeNoDocuments, "no documents found for this chat"
	case errors.Is(err, app.ErrExtractionFailed):
		return http.StatusInternalServerError, response.CodeExtractionFailed, app.ErrExtractionFailed.Error()
	case errors.Is(err, app.ErrUpstreamUnavailable):
		return http.StatusInternalServerError, response.CodeUpstreamUnavailable, app.ErrUpstreamUnavailable.Error()
	case errors.Is(err, app.ErrStorageFailed):
		return http.StatusInternalServerError, response.CodeStorageFailed, app.ErrStorageFailed.Error()
	default:
		return http.StatusInternalServerError, response.CodeInternalServer, "internal server error"
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
}
