package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodePayloadInvalid  = 40001
	CodeEmptyDocument   = 40002
	CodeDocumentLimit   = 40003
	CodeTooManyRequests = 42900

	CodeInternalServer      = 50000
	CodeExtractionFailed    = 50001
	CodeTopicsMissing       = 50002
	CodeNoDocuments         = 50003
	CodeResponseMalformed   = 50004
	CodeStorageFailed       = 50005
	CodeUpstreamUnavailable = 50006
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
