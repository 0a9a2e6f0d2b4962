package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/titanbreach/breach-server/internal/apperr"
)

// respondError renders the canonical error body:
// {"error":{"code":"...","message":"..."}}
func respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s -> %s: %v", c.Request.Method, c.Request.URL.Path, e.Code, err)
	}
	c.JSON(e.Status, gin.H{"error": gin.H{"code": e.Code, "message": e.Message}})
	c.Abort()
}

func respondValidation(c *gin.Context, err error) {
	respondError(c, apperr.ErrValidation.WithCause(err))
}
