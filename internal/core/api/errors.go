package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rescindhq/rescind/internal/types"
)

// writeError maps domain sentinel errors to HTTP status codes. Unknown
// errors become opaque 500s; the detail goes to the log, not the client.
func (s *Service) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrRequestNotFound),
		errors.Is(err, types.ErrOrderNotFound),
		errors.Is(err, types.ErrQueueItemNotFound),
		errors.Is(err, types.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, types.ErrNotesRequired),
		errors.Is(err, types.ErrReviewerRequired),
		errors.Is(err, types.ErrInvalidRule),
		errors.Is(err, types.ErrEmptyConditions),
		errors.Is(err, types.ErrAmountBoundsInverted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, types.ErrVersionConflict),
		errors.Is(err, types.ErrRequestFinal),
		errors.Is(err, types.ErrNotAwaitingInfo):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// badRequest reports a malformed payload.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
