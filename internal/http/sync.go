package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/reconcile"
)

type SyncController struct {
	progress ProgressSyncer
}

func NewSyncController(progress ProgressSyncer) *SyncController {
	return &SyncController{progress: progress}
}

// Sync returns the reconciled position of a book, or records a new one
// when position or completed is given. A completed flag without a
// position keeps the current position.
func (sc *SyncController) Sync(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	rawPosition, hasPosition := c.GetQuery("position")
	_, hasCompleted := c.GetQuery("completed")

	if !hasPosition && !hasCompleted {
		p, err := sc.progress.Read(ctx, id)
		if err != nil {
			respondInternalError(c, err, "sync read", nil)
			return
		}
		c.JSON(http.StatusOK, p)
		return
	}

	completed, ok := parseBoolQuery(c, "completed")
	if !ok {
		respondBadRequest(c, false, "invalid completed")
		return
	}

	var position float64
	if hasPosition {
		if position, ok = parsePosition(rawPosition); !ok {
			respondBadRequest(c, false, "invalid position")
			return
		}
	} else {
		current, err := sc.progress.Read(ctx, id)
		if err != nil {
			respondInternalError(c, err, "sync read", false)
			return
		}
		position = current.Position
	}

	_, err := sc.progress.Write(ctx, id, position, completed)
	switch {
	case errors.Is(err, reconcile.ErrInvalidPosition):
		respondBadRequest(c, false, err.Error())
	case err != nil:
		respondInternalError(c, err, "sync write", false)
	default:
		respondOK(c)
	}
}
