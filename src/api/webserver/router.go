// Package webserver is the backend HTTP API.
package webserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
)

// New builds the API engine. rdb may be nil.
func New(cfg config.API, store *data.Store, rdb *redis.Client, clk clock.Clock, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("panic in handler", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"})
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	attachRoutes(r, cfg, store, rdb, clk, log)
	return r
}

func attachRoutes(r *gin.Engine, cfg config.API, store *data.Store, rdb *redis.Client, clk clock.Clock, log *zap.Logger) {
	access := NewAccess(store, cfg.AdminAPIKey, []byte(cfg.JWTSecret), clk, log)
	limiter := NewRateLimiter(cfg.AuthRateLimit, time.Minute, clk)

	authH := NewAuth(rdb, []byte(cfg.JWTSecret), clk, log)
	propH := NewProposals(store, rdb, cfg.OverviewCacheTTL, log)
	sentH := NewSentiment(store, log)
	voteH := NewDrepVotes(store, log)
	drepH := NewDreps(store, log)
	guildH := NewGuilds(store, log)
	delH := NewDelegators(store, log)

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := store.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			log.Warn("health check", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.Use(access.Authenticate())
	{
		v1.GET("/overview", propH.Overview)
		v1.GET("/proposals", propH.List)
		v1.GET("/proposals/:proposalId", propH.Get)
		v1.GET("/sentiment/:proposalId", sentH.Summary)
		v1.GET("/sentiment/:proposalId/comments", sentH.Comments)
		v1.GET("/sentiment/:proposalId/reactions", sentH.Reactions)
		v1.GET("/dreps/:drepId", drepH.Status)
	}

	limited := v1.Group("", limiter.Middleware(log))
	{
		limited.POST("/auth/challenge", authH.Challenge)
		limited.POST("/auth/verify", authH.Verify)
		limited.POST("/dreps/register", drepH.Register)
	}

	secured := v1.Group("", access.RequireAuth())
	{
		secured.GET("/drep/me/sentiment", sentH.Mine)

		secured.POST("/sentiment/reaction", sentH.RecordReaction)
		secured.POST("/sentiment/comment", sentH.RecordComment)
		secured.POST("/sentiment/notify-drep-vote", voteH.Notify)
		secured.GET("/sentiment/pending-drep-votes", voteH.Pending)
		secured.POST("/sentiment/mark-drep-vote-notified", voteH.MarkNotified)

		secured.POST("/guilds", guildH.Register)
		secured.GET("/guilds/:guildId", guildH.Get)
		secured.PATCH("/guilds/:guildId/channels", guildH.UpdateChannels)
		secured.GET("/guilds/:guildId/posts", guildH.Posts)
		secured.POST("/guilds/:guildId/posts", guildH.RecordPost)

		secured.POST("/delegators/verify", delH.Verify)
		secured.GET("/delegators/check", delH.Check)
	}

	admin := v1.Group("/admin", access.RequireAdmin())
	{
		admin.GET("/dreps", drepH.List)
		admin.POST("/dreps/:drepId/approve", drepH.Approve)
		admin.POST("/dreps/:drepId/reject", drepH.Reject)
		admin.POST("/dreps/:drepId/rotate-key", drepH.RotateKey)
		admin.PUT("/proposals", propH.Upsert)
		admin.PUT("/ncl/:year", propH.UpsertNCL)
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
