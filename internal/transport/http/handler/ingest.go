package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studymate/internal/app"
	"studymate/internal/transport/http/middleware"
	"studymate/internal/transport/http/response"
)

// multipartOverhead is the room left for form fields and part headers on
// top of the file itself.
const multipartOverhead = 1 << 20

type IngestHandler struct {
	ingest   *app.IngestService
	maxBytes int64
}

func NewIngestHandler(ingest *app.IngestService, maxBytes int64) *IngestHandler {
	return &IngestHandler{ingest: ingest, maxBytes: maxBytes}
}

// UploadPDF accepts a multipart form with "file" (PDF) and optional
// "chat_id" and "user_id", and ingests the document into that chat.
func (h *IngestHandler) UploadPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusBadRequest, response.CodePayloadInvalid, "file too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodePayloadInvalid, "missing file")
		return
	}

	f, err := file.Open()
	if err != nil {
		badRequest(c, "failed to read file")
		return
	}
	defer f.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		badRequest(c, "failed to read file")
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), app.IngestInput{
		ChatID:      c.PostForm("chat_id"),
		UserID:      middleware.UserIDFrom(c, c.PostForm("user_id")),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, result)
}
