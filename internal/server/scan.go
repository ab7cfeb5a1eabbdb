package server

import (
	"net/http"
	"strings"

	scandomain "github.com/complyscan/complyscan/internal/scan/domain"
	"github.com/gin-gonic/gin"
)

type createScanRequest struct {
	ScanKind      string `json:"scan_kind" binding:"required"`
	DocumentText  string `json:"document_text" binding:"required"`
	DocumentLabel string `json:"document_label"`
}

func (s *Server) CreateScan(c *gin.Context) {
	var req createScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.scanSvc.Scan(c.Request.Context(), scandomain.ScanRequest{
		UserID:        currentUserID(c),
		ScanKind:      strings.TrimSpace(req.ScanKind),
		DocumentText:  req.DocumentText,
		DocumentLabel: strings.TrimSpace(req.DocumentLabel),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
