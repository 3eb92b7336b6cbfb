package main

import (
	"log"
	"time"

	"github.com/Cramiac/SyncTunes/internal/config"
	"github.com/Cramiac/SyncTunes/internal/database"
	"github.com/Cramiac/SyncTunes/internal/handlers"
	"github.com/Cramiac/SyncTunes/internal/middleware"
	"github.com/Cramiac/SyncTunes/internal/services"
	"github.com/Cramiac/SyncTunes/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           SyncTunes API
// @version         1.0
// @description     Room synchronization backend for listen-together playback
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {member token}"

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	hub := ws.NewHub()
	archiveService := services.NewArchiveService(db)
	tokenService := services.NewTokenService(cfg.JWTSecret, 24*time.Hour)

	coordCfg := services.DefaultCoordinatorConfig()
	coordCfg.Capacity = cfg.RoomCapacity
	coordCfg.CodeAttempts = cfg.CodeAttempts
	coordCfg.HeartbeatInterval = time.Duration(cfg.HeartbeatIntervalSec) * time.Second
	coordCfg.HeartbeatMissLimit = cfg.HeartbeatMissLimit
	coordCfg.ReconnectGrace = time.Duration(cfg.ReconnectGraceSec) * time.Second
	coordCfg.IdleTimeout = time.Duration(cfg.RoomIdleTimeoutMin) * time.Minute

	coordinator := services.NewRoomCoordinator(coordCfg, archiveService)
	coordinator.Start()
	defer coordinator.Stop()

	roomHandler := handlers.NewRoomHandler(coordinator, tokenService, archiveService)
	playbackHandler := handlers.NewPlaybackHandler(coordinator)
	wsHandler := handlers.NewWSHandler(coordinator, tokenService, hub)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/room/:code", wsHandler.HandleRoomWebSocket)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", roomHandler.CreateRoom)
			rooms.POST("/join", roomHandler.Join)
			rooms.GET("/history", roomHandler.History)

			authed := rooms.Group("")
			authed.Use(middleware.MemberAuth(tokenService))
			{
				authed.POST("/leave", roomHandler.Leave)
				authed.GET("/state", roomHandler.GetState)
				authed.POST("/kick", roomHandler.Kick)
				authed.POST("/transition", playbackHandler.Transition)
				authed.POST("/queue", playbackHandler.Enqueue)
				authed.DELETE("/queue", playbackHandler.ClearQueue)
			}
		}
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
