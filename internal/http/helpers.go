package http

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// The reader UI expects the library server's response shapes: a JSON
// boolean for writes, a JSON value or null for reads. Error text never
// leaves the gateway.

// --- Response Helpers ---

// respondOK sends a 200 with a JSON true.
func respondOK(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

// respondFalse sends a JSON false with the given status.
func respondFalse(c *gin.Context, status int) {
	c.JSON(status, false)
}

// respondNull sends a JSON null with the given status.
func respondNull(c *gin.Context, status int) {
	c.JSON(status, nil)
}

// respondBadRequest logs why the input was rejected and sends 400 with body.
func respondBadRequest(c *gin.Context, body any, reason string) {
	log.Printf("Bad request %s %s: %s", c.Request.Method, c.Request.URL.Path, reason)
	c.JSON(http.StatusBadRequest, body)
}

// respondInternalError logs the error and sends a 500 with body.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string, body any) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, body)
}

// --- Parameter Parsing ---

// parseIntQuery reads an optional integer query parameter. Missing
// parameters yield 0, true.
func parseIntQuery(c *gin.Context, name string) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseBoolQuery reads an optional boolean query parameter. A missing or
// empty parameter yields nil.
func parseBoolQuery(c *gin.Context, name string) (*bool, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// parsePosition reads a finite, non-negative position.
func parsePosition(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
