package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getTranslations(c *gin.Context) {
	c.JSON(http.StatusOK, s.localizer(c).Snapshot())
}

func (s *Server) translateKey(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	l := s.localizer(c)
	c.JSON(http.StatusOK, gin.H{
		"key":      key,
		"value":    l.T(key),
		"language": l.Language(),
		"loading":  l.Loading(),
	})
}

type changeLanguageRequest struct {
	Code string `json:"code" binding:"required"`
}

// changeLanguage answers before retranslation finishes; clients poll
// /api/i18n until loading is false.
func (s *Server) changeLanguage(c *gin.Context) {
	var req changeLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l := s.localizer(c)
	if err := l.ChangeLanguage(c.Request.Context(), req.Code); err != nil {
		respondError(c, err)
		return
	}
	snap := l.Snapshot()
	c.JSON(http.StatusAccepted, gin.H{
		"language":     snap.Language,
		"loading":      snap.Loading,
		"autoDetected": snap.AutoDetected,
	})
}

func (s *Server) listLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"current":   s.localizer(c).Language(),
		"languages": SupportedLanguages,
	})
}

func (s *Server) listProjects(c *gin.Context) {
	l := s.localizer(c)
	c.JSON(http.StatusOK, gin.H{
		"language": l.Language(),
		"projects": projectViews(l.T, c.Query("category")),
	})
}
