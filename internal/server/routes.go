package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	synchandler "github.com/dotsync/dotsync/internal/server/handlers/sync"
	"github.com/dotsync/dotsync/internal/server/handlers/ws"
	"github.com/dotsync/dotsync/internal/server/middlewares"
	"github.com/dotsync/dotsync/internal/version"
)

func SetupRoutes(config *Config, svc *Services, hub *ws.WebsocketHub) http.Handler {
	r := gin.New()

	syncH := synchandler.New(svc.Sync)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.RateLimiter(config.HTTP.RateLimit))
	v1.Use(middlewares.JWTAuth(svc.Auth))
	{
		v1.POST("/sync/push", syncH.Push)
		v1.GET("/sync/pull", syncH.Pull)
		v1.GET("/sync/feed", syncH.Feed)
		v1.GET("/sync/status", syncH.Status)
		v1.POST("/sync/delete", syncH.Delete)

		v1.GET("/sync/conflicts", syncH.Conflicts)
		v1.POST("/sync/resolve", syncH.Resolve)

		// websocket events
		v1.GET("/events", hub.WebsocketHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
