package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Server holds everything the HTTP handlers need.
type Server struct {
	cfg          *Config
	kv           KVStore
	sql          *SQLStore
	retranslator *Retranslator
	localizers   *LocalizerRegistry
	games        *GameManager
	counter      *VisitorCounter
	tracker      *VisitorTracker
	mailer       Mailer
	admin        *adminAuth
	checks       map[string]func(ctx context.Context) error
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(), correlationID(), requestLogger(), metricsMiddleware())

	if origins := s.cfg.corsOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept-Language"}
		corsConfig.AllowCredentials = true
		r.Use(cors.New(corsConfig))
	}

	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	r.Static("/images", "./images")
	r.Static("/static", "./static")

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	site := r.Group("/")
	site.Use(visitorIdentity(s.cfg.isProduction()))
	if s.tracker != nil {
		site.Use(s.tracker.Middleware())
	}
	{
		site.GET("/", s.index)
		site.GET("/resume", s.downloadResume)
		site.POST("/contact", s.submitContact)
	}

	api := site.Group("/api")
	{
		api.GET("/i18n", s.getTranslations)
		api.GET("/i18n/t", s.translateKey)
		api.PUT("/i18n/language", s.changeLanguage)
		api.GET("/languages", s.listLanguages)
		api.GET("/projects", s.listProjects)
		api.GET("/visitors", s.visitorStats)

		api.POST("/game", s.createGame)
		api.GET("/game/leaderboard", s.leaderboard)
		api.GET("/game/:id", s.getGame)
		api.POST("/game/:id/start", s.startGame)
		api.POST("/game/:id/hit", s.hitTarget)
		api.POST("/game/:id/reset", s.resetGame)
		api.POST("/game/:id/resize", s.resizeGame)
		api.DELETE("/game/:id", s.deleteGame)
		api.GET("/game/:id/ws", s.streamGame)
	}

	s.setupAdminRoutes(r)
	return r
}

// localizer returns the calling visitor's Localizer.
func (s *Server) localizer(c *gin.Context) *Localizer {
	return s.localizers.Get(c.Request.Context(), c.GetString(visitorIDKey), c.GetHeader("Accept-Language"))
}

func (s *Server) index(c *gin.Context) {
	l := s.localizer(c)
	stats, err := s.counter.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"T":            l.T,
		"Language":     l.Language(),
		"Loading":      l.Loading(),
		"Languages":    SupportedLanguages,
		"Projects":     projectViews(l.T, c.Query("category")),
		"Testimonial":  testimonialView(l.T, FeaturedTestimonial),
		"Instructions": l.Strings("game.instructions"),
		"Stats":        stats,
		"Year":         time.Now().Year(),
	})
}

func (s *Server) visitorStats(c *gin.Context) {
	stats, err := s.counter.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string)}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
		} else {
			resp.Checks[name] = "healthy"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrGameNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPhase):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidLanguage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
