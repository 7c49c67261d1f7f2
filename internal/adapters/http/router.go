package http

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/dkeye/peerlink/internal/adapters/signal"
	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/app/orch"
	"github.com/dkeye/peerlink/internal/config"
	"github.com/dkeye/peerlink/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionName = "PeerLinkSession"

type Deps struct {
	Orch    *orch.Orchestrator
	Rooms   *app.RoomManager
	Signal  *signal.SignalWSController
	Metrics *metrics.Metrics
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())

	r.Use(sessions.Sessions(sessionName, cookie.NewStore(sessionKey(cfg.Secret))))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	r.NoRoute(staticFallback(cfg.StaticPath))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	iceServers, err := cfg.WebRTCICEServers()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ice servers")
	}
	h := &roomHandlers{
		rooms:      d.Rooms,
		orch:       d.Orch,
		publicWS:   cfg.PublicWSURL,
		iceServers: iceServers,
	}

	api := r.Group("/api")
	api.POST("/create-room", h.createRoom)
	api.POST("/join-room", h.joinRoom)
	api.POST("/leave", h.leave)
	api.GET("/room/:roomId", h.roomInfo)
	api.GET("/rooms", h.listRooms)
	api.GET("/session", h.session)
	api.GET("/ice-servers", h.listICEServers)
	api.POST("/transcribe", notImplemented("Transcription"))
	api.POST("/translate", notImplemented("Translation"))

	r.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c)
	})

	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	return r
}

// sessionKey falls back to a per-process random key; sessions then do not
// survive a restart.
func sessionKey(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	log.Warn().Str("module", "adapters.http").Msg("no secret configured, using an ephemeral session key")
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return key
}

// staticFallback serves files of root at the site root, so front-end
// assets like /join.html or /app.js resolve without the /static prefix.
func staticFallback(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if fi, err := os.Stat(name); err != nil || fi.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.File(name)
	}
}
