package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/errs"
	"chat-sync/internal/logx"
	"chat-sync/internal/observability"
)

func parseID(c *gin.Context, param string) (int, bool) {
	id, err := strconv.Atoi(c.Param(param))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}

// respondError maps err to a status code and a client-safe body. Internal
// causes are logged, never returned.
func respondError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logx.Error(err, "request failed",
			"request_id", observability.RequestIDFromRequest(c.Request),
			"route", c.FullPath())
	}

	msg, details := errs.PublicMessage(err)
	body := gin.H{"error": msg, "code": errs.KindOf(err).String()}
	if details != "" {
		body["details"] = details
	}
	c.JSON(status, body)
}
