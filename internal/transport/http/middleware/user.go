package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"studymate/internal/app"
	"studymate/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	HeaderUserID     = "X-User-ID"
)

// UserID picks up the anonymous user id from the X-User-ID header. A missing
// header is fine; a header that is not a usable id is rejected.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if strings.TrimSpace(raw) == "" {
			c.Next()
			return
		}
		userID, ok := app.NormalizeUserID(raw)
		if !ok {
			response.Abort(c, 400, response.CodePayloadInvalid, "invalid X-User-ID header")
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// UserIDFrom returns fromBody when set, otherwise the id taken from the
// header.
func UserIDFrom(c *gin.Context, fromBody string) string {
	if strings.TrimSpace(fromBody) != "" {
		return fromBody
	}
	return c.GetString(ContextUserIDKey)
}
