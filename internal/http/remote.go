package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/remote"
)

type LoginRequest struct {
	Server   string `json:"server" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

// RemoteController proxies the library server operations that have no
// local counterpart.
type RemoteController struct {
	remote   RemoteConnector
	metadata MetadataScheduler
}

func NewRemoteController(connector RemoteConnector, metadata MetadataScheduler) *RemoteController {
	return &RemoteController{remote: connector, metadata: metadata}
}

// Login replaces the session and refreshes local metadata in the background.
func (rc *RemoteController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, false, err.Error())
		return
	}

	ctx := c.Request.Context()
	err := rc.remote.Login(ctx, req.Server, req.Username, req.Password)
	switch {
	case errors.Is(err, remote.ErrInvalidServer):
		respondBadRequest(c, false, err.Error())
		return
	case remote.FromRemote(err):
		log.Printf("Remote: login to %s failed: %v", req.Server, err)
		respondFalse(c, http.StatusOK)
		return
	case err != nil:
		respondInternalError(c, err, "login", false)
		return
	}

	if rc.metadata != nil {
		if err := rc.metadata.RefreshMetadata(ctx); err != nil {
			log.Printf("Remote: failed to schedule metadata refresh: %v", err)
		}
	}
	respondOK(c)
}

// Search passes the query through; any failure answers null.
func (rc *RemoteController) Search(c *gin.Context) {
	page, okPage := parseIntQuery(c, "page")
	pageSize, okSize := parseIntQuery(c, "pageSize")
	completed, okCompleted := parseBoolQuery(c, "completed")
	if !okPage || !okSize || !okCompleted {
		respondBadRequest(c, nil, "invalid search parameters")
		return
	}

	ctx := c.Request.Context()
	client, err := rc.remote.Client(ctx)
	if err != nil {
		respondNull(c, http.StatusOK)
		return
	}
	books, err := client.Search(ctx, remote.SearchQuery{
		Term:      c.Query("term"),
		Page:      page,
		PageSize:  pageSize,
		Order:     c.Query("order"),
		Completed: completed,
	})
	if err != nil {
		log.Printf("Remote: search failed: %v", err)
		respondNull(c, http.StatusOK)
		return
	}
	if books == nil {
		books = []remote.Book{}
	}
	c.JSON(http.StatusOK, books)
}

// Verify reports the stored session and whether the server accepts it.
func (rc *RemoteController) Verify(c *gin.Context) {
	v, err := rc.remote.Verify(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "verify", nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Collections passes the server's collection tree through unchanged.
func (rc *RemoteController) Collections(c *gin.Context) {
	ctx := c.Request.Context()
	client, err := rc.remote.Client(ctx)
	if err != nil {
		respondNull(c, http.StatusOK)
		return
	}
	raw, err := client.Collections(ctx)
	if err != nil {
		log.Printf("Remote: collections failed: %v", err)
		respondNull(c, http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
