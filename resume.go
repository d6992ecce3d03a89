package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// downloadResume holds the response for the configured delay, so the
// "downloading" state is visible, then serves the CV as an attachment.
func (s *Server) downloadResume(c *gin.Context) {
	if _, err := os.Stat(s.cfg.Resume.Path); err != nil {
		logger().Warn("resume file unavailable", zap.String("path", s.cfg.Resume.Path), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "resume not available"})
		return
	}

	if d := s.cfg.Resume.Delay; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-c.Request.Context().Done():
			return
		case <-timer.C:
		}
	}

	c.FileAttachment(s.cfg.Resume.Path, s.cfg.Resume.FileName)
}
