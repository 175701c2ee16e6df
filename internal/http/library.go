package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/services"
)

// FilenameHeader carries the original file name of an upload.
const FilenameHeader = "filename"

type LibraryController struct {
	library Library
}

func NewLibraryController(library Library) *LibraryController {
	return &LibraryController{library: library}
}

// Upload stores the raw request body as a book.
func (lc *LibraryController) Upload(c *gin.Context) {
	filename := c.GetHeader(FilenameHeader)
	if filename == "" {
		respondBadRequest(c, false, "missing filename header")
		return
	}

	book, err := lc.library.Upload(c.Request.Context(), filename, c.Request.Body)
	switch {
	case errors.Is(err, services.ErrUnsupportedFormat), errors.Is(err, services.ErrInvalidArchive):
		respondBadRequest(c, false, err.Error())
		return
	case err != nil:
		respondInternalError(c, err, "upload", false)
		return
	}
	log.Printf("Library: uploaded %q as %s", filename, book.ID)
	respondOK(c)
}

// List returns every local book merged with its progress.
func (lc *LibraryController) List(c *gin.Context) {
	books, err := lc.library.Books(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list books", nil)
		return
	}
	if books == nil {
		books = []services.BookView{}
	}
	c.JSON(http.StatusOK, books)
}

// Meta returns one book, local or remote, or null.
func (lc *LibraryController) Meta(c *gin.Context) {
	view, err := lc.library.BookMeta(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondInternalError(c, err, "book meta", nil)
		return
	}
	if view == nil {
		respondNull(c, http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Download pulls a book from the server into the local store.
func (lc *LibraryController) Download(c *gin.Context) {
	err := lc.library.Download(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		respondOK(c)
	case remote.FromRemote(err), errors.Is(err, services.ErrIntegrity):
		log.Printf("Library: download of %s failed: %v", c.Param("id"), err)
		respondFalse(c, http.StatusOK)
	default:
		respondInternalError(c, err, "download", false)
	}
}

// Delete removes a book and its content.
func (lc *LibraryController) Delete(c *gin.Context) {
	err := lc.library.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondFalse(c, http.StatusOK)
	case err != nil:
		respondInternalError(c, err, "delete", false)
	default:
		respondOK(c)
	}
}
