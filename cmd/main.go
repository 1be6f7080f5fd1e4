package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-server/api"
	"chat-server/auth"
	"chat-server/hub"
	"chat-server/observer"
	"chat-server/repositories"
	"chat-server/services"
	"chat-server/storage"
	"chat-server/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and connections.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Gateway
	userRepository := repositories.NewUserRepository(db)
	roomRepository, err := repositories.NewRoomRepository(db, log)
	if err != nil {
		return fmt.Errorf("room repository: %w", err)
	}
	defer func() { _ = roomRepository.Close() }()
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)

	gateway := storage.NewGateway(userRepository, roomRepository, messageRepository, log)

	// 4. Broadcast fabric & subscription registry; both listen to the
	// gateway's change events. Registration happens before the first
	// connection is accepted.
	broadcastHub := hub.NewHub(log)
	registry := observer.NewRegistry(log)
	gateway.Register(registry)
	gateway.Register(ws.NewBroadcaster(broadcastHub, log))

	// 5. Authentication
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	resolver := auth.NewResolver(tokens, userRepository, log)
	defer resolver.Stop()

	// 6. Services & HTTP surface
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(gateway, broadcastHub, registry, log)

	clientConfig := hub.Config{
		WriteWait:      config.WriteWait,
		PongWait:       config.PongWait,
		PingInterval:   config.PingInterval,
		MaxMessageSize: config.MaxMessageSize,
		SendBufferSize: config.ConnectionBufferSize,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api.NewHandler(authService, chatService, gateway, log).RegisterRoutes(router, resolver)
	ws.NewHandler(resolver, chatService, clientConfig, log).RegisterRoutes(router)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
