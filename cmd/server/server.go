package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/thereayou/pulse/internal/database"
	"github.com/thereayou/pulse/internal/handlers"
	"github.com/thereayou/pulse/internal/notify"
	"github.com/thereayou/pulse/internal/presence"
	"github.com/thereayou/pulse/internal/scheduler"
	"github.com/thereayou/pulse/internal/ws"
	"github.com/thereayou/pulse/pkg/auth"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub
	Scanner    *scheduler.Scanner
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn, err := database.Connect()
	if err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	hub := ws.NewHub(dbConn, presence.NewRedisMirror(rdb))
	dispatcher := notify.NewDispatcher(hub, dbConn)
	engine := handlers.NewEventHandler(dbConn, hub, dispatcher)

	scanInterval := 5 * time.Minute
	if raw := os.Getenv("DEADLINE_SCAN_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			scanInterval = parsed
		} else {
			log.Printf("invalid DEADLINE_SCAN_INTERVAL %q, using %s", raw, scanInterval)
		}
	}
	scanner := scheduler.NewScanner(dbConn, dispatcher, scanInterval)

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	userH := handlers.NewUserHandler(dbConn, hub)
	chatH := handlers.NewChatHandler(dbConn, hub, engine)
	notifH := handlers.NewNotificationHandler(dbConn)
	wsH := handlers.NewWebSocketHandler(hub, engine)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, userH, chatH, notifH, wsH)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
		Scanner:    scanner,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go s.Hub.Run()
	go s.Scanner.Run()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.Router,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server run error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Сначала перестаем принимать запросы, затем гасим ядро:
	// Stop принудительно закрывает все живые соединения
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	s.Scanner.Stop()
	s.Hub.Stop()

	log.Println("Server stopped")
}
