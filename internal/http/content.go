package http

import (
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/content"
)

type ContentController struct {
	content ContentReader
}

func NewContentController(reader ContentReader) *ContentController {
	return &ContentController{content: reader}
}

// Book serves the whole archive, its member list with ?files, or one
// member with ?filename=.
func (cc *ContentController) Book(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, ok := c.GetQuery("files"); ok {
		files, err := cc.content.Files(ctx, id)
		if err != nil {
			cc.fail(c, err, "list files")
			return
		}
		c.JSON(http.StatusOK, files)
		return
	}

	if name, ok := c.GetQuery("filename"); ok {
		if name == "" {
			respondBadRequest(c, nil, "empty filename")
			return
		}
		data, err := cc.content.File(ctx, id, name)
		if err != nil {
			cc.fail(c, err, "read file")
			return
		}
		c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
		return
	}

	body, err := cc.content.Archive(ctx, id)
	if err != nil {
		cc.fail(c, err, "read archive")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", body, nil)
}

func (cc *ContentController) fail(c *gin.Context, err error, context string) {
	if errors.Is(err, content.ErrNotFound) {
		respondNull(c, http.StatusNotFound)
		return
	}
	respondInternalError(c, err, context, nil)
}
