package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncBillingCredits replays the provider's recent completed sessions for
// the caller. Safe to invoke repeatedly.
func (s *Server) SyncBillingCredits(c *gin.Context) {
	result, err := s.billingSvc.SyncFromProvider(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
