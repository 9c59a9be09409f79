package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/ocx/gateway/internal/config"
	"github.com/ocx/gateway/internal/handlers"
	"github.com/ocx/gateway/internal/logging"
	"github.com/ocx/gateway/internal/metrics"
	"github.com/ocx/gateway/internal/middleware"
	"github.com/ocx/gateway/internal/queueengine"
	"github.com/ocx/gateway/internal/security"
	"github.com/ocx/gateway/internal/targets"
	"github.com/ocx/gateway/internal/targets/a2aclient"
	"github.com/ocx/gateway/internal/targets/mcpconn"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG_PATH"), "path to the gateway's YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("gateway: .env present but unreadable: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("gateway: config: %v", err)
	}

	// instanceID tags every log line so operators can separate this
	// process's output from a sibling instance behind the same
	// load balancer; it carries no coordination meaning across
	// restarts or nodes.
	instanceID := uuid.NewString()
	logger := logging.New(cfg.Server.LogLevel).With("instance_id", instanceID)

	registry, err := targets.NewRegistry(cfg)
	if err != nil {
		log.Fatalf("gateway: targets: %v", err)
	}

	authGate, err := security.NewAuthGate(cfg)
	if err != nil {
		log.Fatalf("gateway: auth: %v", err)
	}

	engine := queueengine.New(queueengine.Limits{
		TimeoutMs:   cfg.Queue.TimeoutMs,
		MaxQueue:    cfg.Queue.MaxQueuePerTarget,
		MaxInflight: cfg.Queue.MaxInflightPerTarget,
	})
	mcpPool := mcpconn.NewPool()
	a2aClient := a2aclient.New()
	metricsRegistry := metrics.New()

	deps := &handlers.Deps{
		Engine:       engine,
		Registry:     registry,
		MCPPool:      mcpPool,
		A2A:          a2aClient,
		Logger:       logger,
		Metrics:      metricsRegistry,
		HideNotFound: cfg.HideNotFound(),
		BodyCapBytes: cfg.BodyCapBytes(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health()).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metricsRegistry.Handler().ServeHTTP).Methods(http.MethodGet)
	router.HandleFunc("/", handlers.GatewayCard()).Methods(http.MethodGet)
	router.HandleFunc("/mcp/v1/message", handlers.MCPMessage(deps)).Methods(http.MethodPost)
	router.HandleFunc("/a2a/v1/message/send", handlers.A2AMessage(deps, "message/send")).Methods(http.MethodPost)
	router.HandleFunc("/a2a/v1/tasks/send", handlers.A2AMessage(deps, "tasks/send")).Methods(http.MethodPost)
	router.HandleFunc("/a2a/v1/tasks/get", handlers.A2AMessage(deps, "tasks/get")).Methods(http.MethodPost)
	router.HandleFunc("/a2a/v1/tasks/cancel", handlers.A2AMessage(deps, "tasks/cancel")).Methods(http.MethodPost)

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.AuthMiddleware(authGate))
	router.Use(middleware.AccessLogMiddleware(logger))

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Queue.TimeoutMs+5000) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	idleClosed := make(chan struct{})
	go func() {
		<-sigChan
		logger.Info("server_shutdown", "grace_sec", cfg.Server.ShutdownGrace)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownGrace)*time.Second)
		defer cancel()

		engine.Shutdown()
		mcpPool.CloseAll()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server_shutdown_error", "error", err.Error())
		}
		close(idleClosed)
	}()

	logger.Info("server_started", "addr", cfg.Addr(), "auth_mode", string(cfg.Auth.Mode), "targets", len(cfg.Targets))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("gateway: server failed: %v", err)
	}

	<-idleClosed
	logger.Info("server_stopped")
}
