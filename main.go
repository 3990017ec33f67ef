package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/emberforge/socialcore/api/rest"
	"github.com/emberforge/socialcore/api/sse"
	apiws "github.com/emberforge/socialcore/api/ws"
	"github.com/emberforge/socialcore/cache"
	"github.com/emberforge/socialcore/config"
	dbadapter "github.com/emberforge/socialcore/db"
	"github.com/emberforge/socialcore/identity"
	mw "github.com/emberforge/socialcore/middleware"
	"github.com/emberforge/socialcore/model"
	"github.com/emberforge/socialcore/notify"
	"github.com/emberforge/socialcore/scheduler"
	"github.com/emberforge/socialcore/social/coordinator"
	"github.com/emberforge/socialcore/social/friends"
	"github.com/emberforge/socialcore/social/party"
	"github.com/emberforge/socialcore/social/presence"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	gdb, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache / PubSub ----
	kv, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Notification Transport ----
	transport := notify.NewPubSubTransport(pubsub, logger)

	// ---- Persistence Store ----
	store := party.NewGormStore(gdb, logger, cfg.Social.PartySaveQueue)
	defer store.Stop()

	// ---- Directories ----
	parties := party.NewRegistry(store, transport, logger, party.Options{
		MaxPartySize: cfg.Social.MaxPartySize,
		InviteTTL:    cfg.Social.InviteTTL,
	})
	presenceDir := presence.NewDirectory(transport, logger, presence.Options{
		IdleThreshold: cfg.Social.PresenceIdle,
		GCThreshold:   cfg.Social.PresenceGCThreshold,
	})
	graph := friends.NewGraph(transport, logger, friends.Options{
		RequestTTL: cfg.Social.FriendRequestTTL,
	})
	coord := coordinator.New(parties, presenceDir, graph, logger)

	// ---- Periodic Sweeps ----
	sched.AddTicker("invitation_sweep", cfg.Social.SweepInterval, func() {
		parties.SweepExpiredInvitations()
	})
	sched.AddTicker("friend_request_sweep", cfg.Social.SweepInterval, func() {
		graph.SweepExpiredRequests()
	})
	sched.AddTicker("presence_sweep", cfg.Social.PresenceSweep, func() {
		presenceDir.Sweep()
	})

	// ---- Identity Provider ----
	provider := identity.NewJWTProvider(cfg.Security.JWTSecret, kv)

	// ---- WS Router ----
	sm := apiws.NewSessionManager(logger)
	wsRouter := apiws.NewRouter(logger)
	socialWS := apiws.NewSocialHandlers(coord, logger)
	socialWS.RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(gdb, kv, cfg.Security)
	partyH := apirest.NewPartyHandler(parties)
	presenceH := apirest.NewPresenceHandler(presenceDir)
	friendsH := apirest.NewFriendsHandler(coord)
	adminH := apirest.NewAdminHandler(coord, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(provider), authH.Logout)
		authG.POST("/refresh", mw.Auth(provider), authH.Refresh)

		partiesG := api.Group("/parties")
		partiesG.Use(mw.Auth(provider))
		partiesG.POST("", partyH.Create)
		partiesG.GET("/mine", partyH.Mine)
		partiesG.GET("/:id", partyH.Get)
		partiesG.POST("/:id/members", partyH.Join)
		partiesG.DELETE("/:id/members/me", partyH.Leave)
		partiesG.PUT("/:id/members/me/ready", partyH.SetReady)
		partiesG.POST("/:id/invitations", partyH.Invite)

		invitesG := api.Group("/invitations")
		invitesG.Use(mw.Auth(provider))
		invitesG.GET("", partyH.ListInvitations)
		invitesG.POST("/:id/response", partyH.RespondInvitation)

		presenceG := api.Group("/presence")
		presenceG.Use(mw.Auth(provider))
		presenceG.PUT("", presenceH.Set)
		presenceG.POST("/bulk", presenceH.GetBulk)
		presenceG.POST("/subscriptions", presenceH.Subscribe)
		presenceG.DELETE("/subscriptions", presenceH.Unsubscribe)
		presenceG.GET("/:id", presenceH.Get)

		friendsG := api.Group("/friends")
		friendsG.Use(mw.Auth(provider))
		friendsG.GET("", friendsH.List)
		friendsG.POST("/requests", friendsH.SendRequest)
		friendsG.GET("/requests", friendsH.ListRequests)
		friendsG.POST("/requests/:id/response", friendsH.RespondRequest)
		friendsG.GET("/blocks", friendsH.ListBlocked)
		friendsG.POST("/blocks/:id", friendsH.Block)
		friendsG.DELETE("/blocks/:id", friendsH.Unblock)
		friendsG.GET("/mutual/:id", friendsH.Mutual)
		friendsG.DELETE("/:id", friendsH.Remove)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/sweep", adminH.Sweep)
		adminG.POST("/disconnect/:id", adminH.DisconnectAccount)
	}

	// ---- WebSocket ----
	wsH := apiws.NewHandler(provider, coord, pubsub, sm, wsRouter, cfg.Security, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, provider, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
