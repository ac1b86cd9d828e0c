package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
)

// Listing bounds
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// fail renders an error as the service payload: the kind, a readable
// message, the offending identifiers and the correlation id. Unknown
// errors become an opaque 500.
func fail(c *gin.Context, err error) {
	var typed *errs.Error
	if errors.As(err, &typed) {
		payload := gin.H{
			"error":      string(typed.Kind),
			"message":    typed.Message,
			"request_id": requestID(c),
		}
		if len(typed.Details) > 0 {
			payload["details"] = typed.Details
		}
		c.AbortWithStatusJSON(typed.Status, payload)
		return
	}

	log.Error("[API] %s %s: %s", c.Request.Method, c.Request.URL.Path, err.Error())
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":      "InternalServerError",
		"message":    "An unexpected error occurred",
		"request_id": requestID(c),
	})
}

// pagination reads page/page_size query values, rejecting out-of-range
// input rather than clamping it
func pagination(c *gin.Context) (page int, pageSize int, err error) {
	page, err = queryInt(c, "page", 1)
	if err != nil || page < 1 {
		return 0, 0, errs.Validation("page must be a positive integer")
	}
	pageSize, err = queryInt(c, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, errs.Validation("page_size must be between 1 and %d", maxPageSize)
	}
	return page, pageSize, nil
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Validation("%s must be an integer", name)
	}
	return value, nil
}

// listPayload is the envelope every paginated listing shares
func listPayload(key string, items interface{}, total, page, pageSize int) gin.H {
	return gin.H{
		key:         items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  page*pageSize < total,
	}
}
