package main

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

func (s *Server) createGame(c *gin.Context) {
	var area Area
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&area); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	session := s.games.Create(area)
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (s *Server) gameSession(c *gin.Context) (*GameSession, bool) {
	session, err := s.games.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

func (s *Server) getGame(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) startGame(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}
	if err := session.Start(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// hitTarget always answers 200; "scored" is false when the round is not
// running.
func (s *Server) hitTarget(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}
	scored := session.Hit()
	c.JSON(http.StatusOK, gin.H{"scored": scored, "game": session.Snapshot()})
}

func (s *Server) resetGame(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}
	if err := session.Reset(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) resizeGame(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}
	var area Area
	if err := c.ShouldBindJSON(&area); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session.Resize(area)
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) deleteGame(c *gin.Context) {
	if err := s.games.Remove(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	scores, err := s.games.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range s.cfg.corsOrigins() {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// streamGame pushes a snapshot over a websocket on every session change.
func (s *Server) streamGame(c *gin.Context) {
	session, ok := s.gameSession(c)
	if !ok {
		return
	}

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger().Warn("websocket upgrade failed", zap.String("game", session.ID()), zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	// The read loop only services pongs and notices the client leaving.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger().Debug("websocket write failed", zap.String("game", session.ID()), zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
