package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/utils"
)

const qrSize = 256

// Router builds the HTTP surface: websocket endpoint, health, metrics, the word
// pair admin API and room invite QR codes.
func (s *GameServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(s.corsConfig()))

	router.GET("/ws", func(c *gin.Context) {
		s.handleWebSocket(c.Writer, c.Request)
	})
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	router.GET("/rooms/:code/qr.png", s.handleRoomQR)

	words := router.Group("/api/words")
	words.GET("", s.handleListWords)

	admin := words.Group("", s.requireAdmin())
	admin.POST("", s.handleCreateWord)
	admin.POST("/batch", s.handleImportWords)
	admin.PATCH("/:id", s.handleUpdateWord)
	admin.PUT("/:id", s.handleUpdateWord)
	admin.DELETE("/:id", s.handleDeleteWord)

	return router
}

func (s *GameServer) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range s.cfg.Server.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Log.Infow("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// requireAdmin checks "Authorization: Bearer <admin_secret>". With no secret
// configured every write is refused.
func (s *GameServer) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.Server.AdminSecret
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *GameServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       s.registry.RoomCount(),
		"connections": s.sessions.Count(),
		"uptime":      s.monitor.Uptime().Seconds(),
	})
}

func (s *GameServer) handleRoomQR(c *gin.Context) {
	code := c.Param("code")
	if err := utils.ValidateRoomCode(code); err != nil {
		writeError(c, err, "")
		return
	}
	if _, ok := s.registry.GetRoom(code); !ok {
		writeError(c, models.ErrRoomNotFound, "")
		return
	}

	base := strings.TrimRight(s.cfg.Server.PublicURL, "/")
	if base == "" {
		base = "http://" + c.Request.Host
	}
	png, err := qrcode.Encode(base+"/room/"+code, qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err, "Failed to render QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- word pairs ----------

func (s *GameServer) handleListWords(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	pairs, err := s.words.List(c.Request.Context(), enabledOnly)
	if err != nil {
		writeError(c, err, "Failed to fetch word pairs")
		return
	}
	c.JSON(http.StatusOK, pairs)
}

func (s *GameServer) handleCreateWord(c *gin.Context) {
	var input models.WordPairInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	pair, err := s.words.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err, "Failed to create word pair")
		return
	}
	c.JSON(http.StatusCreated, pair)
}

func (s *GameServer) handleImportWords(c *gin.Context) {
	var body struct {
		Pairs []models.WordPairInput `json:"pairs"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	result, err := s.words.Import(c.Request.Context(), body.Pairs)
	if err != nil {
		writeError(c, err, "Failed to import word pairs")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *GameServer) handleUpdateWord(c *gin.Context) {
	var update models.WordPairUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	pair, err := s.words.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		writeError(c, err, "Failed to update word pair")
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *GameServer) handleDeleteWord(c *gin.Context) {
	if err := s.words.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "Failed to delete word pair")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// writeError maps a GameError to its HTTP status. Anything else is logged and
// answered with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	var gameErr *models.GameError
	if !errors.As(err, &gameErr) {
		logger.Log.Errorw("http request failed", "path", c.Request.URL.Path, "error", err)
		if fallback == "" {
			fallback = models.ErrInternal.Message
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
		return
	}

	status := http.StatusInternalServerError
	switch gameErr.Kind {
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindConflict:
		status = http.StatusConflict
	case models.KindNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": gameErr.Message})
}
