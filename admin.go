// admin.go - privacy-conscious admin dashboard
package main

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminCookie = "admin_token"

type AdminStats struct {
	Visits             *VisitSummary `json:"visits"`
	DisplayedPageViews int           `json:"displayed_page_views"`
	Games              ScoreSummary  `json:"games"`
	CachedTranslations int           `json:"cached_translations"`
	ActiveLocalizers   int           `json:"active_localizers"`
	TranslatorState    string        `json:"translator_state"`
}

// adminAuth holds the per-process session token handed out on login.
type adminAuth struct {
	username string
	password string
	token    string
}

func newAdminAuth(cfg AdminConfig, production bool) *adminAuth {
	a := &adminAuth{username: cfg.Username, password: cfg.Password, token: randomToken()}

	logger().Info("admin access available at /admin/login")
	if cfg.Username == "admin" && cfg.Password == "admin123" {
		if production {
			logger().Warn("using default admin credentials; set ADMIN_USERNAME and ADMIN_PASSWORD")
		} else {
			logger().Debug("using default admin credentials")
		}
	}
	return a
}

func (a *adminAuth) valid(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) adminStats(c *gin.Context) (*AdminStats, error) {
	ctx := c.Request.Context()
	visits, err := s.sql.VisitSummary(ctx, 50)
	if err != nil {
		return nil, err
	}
	games, err := s.sql.ScoreSummary(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.counter.Current(ctx)
	if err != nil {
		return nil, err
	}

	stats := &AdminStats{
		Visits:             visits,
		DisplayedPageViews: views,
		Games:              games,
		CachedTranslations: s.retranslator.CachedCount(),
		ActiveLocalizers:   s.localizers.Len(),
	}
	if g, ok := s.retranslator.translator.(*GoogleTranslator); ok {
		stats.TranslatorState = g.breaker.State().String()
	}
	return stats, nil
}

func (s *Server) setupAdminRoutes(r *gin.Engine) {
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		if s.admin.valid(c.PostForm("username"), c.PostForm("password")) {
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(adminCookie, s.admin.token, 3600*24, "/admin", "", s.cfg.isProduction(), true)
			logger().Info("admin login successful", zap.String("ip_hash", s.hashClientIP(c)))
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}
		logger().Warn("failed admin login attempt", zap.String("ip_hash", s.hashClientIP(c)))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid credentials",
		})
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", s.cfg.isProduction(), true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(s.admin.middleware())

	admin.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.adminStats(c)
		if err != nil {
			logger().Error("error loading admin stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/visitors", func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
		if err != nil || limit <= 0 || limit > 1000 {
			limit = 200
		}
		summary, err := s.sql.VisitSummary(c.Request.Context(), limit)
		if err != nil {
			logger().Error("error loading visitors", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load visitors"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"visitors": summary.RecentVisitors})
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		removed, err := s.sql.CleanupVisits(c.Request.Context(), visitRetention)
		if err != nil {
			logger().Error("privacy cleanup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		logger().Info("privacy cleanup", zap.Int64("removed", removed))
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.adminStats(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		logger().Info("admin stats exported", zap.String("ip_hash", s.hashClientIP(c)))
		c.JSON(http.StatusOK, stats)
	})
}

func (s *Server) hashClientIP(c *gin.Context) string {
	if s.tracker == nil {
		return ""
	}
	return s.tracker.hashIP(c.ClientIP())
}
