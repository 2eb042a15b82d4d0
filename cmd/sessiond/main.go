// sessiond - game server session and chat-alias tracker
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ernie/sessions-tracker/internal/api"
	"github.com/ernie/sessions-tracker/internal/config"
	"github.com/ernie/sessions-tracker/internal/logging"
	"github.com/ernie/sessions-tracker/internal/source"
	"github.com/ernie/sessions-tracker/internal/storage"
	"github.com/ernie/sessions-tracker/internal/tracker"
)

var version = "dev"

const defaultConfigPath = "/etc/sessiond/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "schema":
		cmdSchema(os.Args[2:])
	case "version":
		fmt.Printf("sessiond %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: sessiond <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start tracking sessions")
	fmt.Println("  schema     Create database tables and exit")
	fmt.Println("  version    Show version")
	fmt.Println("  help       Show this help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/sessiond/config.yml)")
}

func loadConfig(args []string, name string) *config.Config {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

// cmdSchema creates the database schema and exits
func cmdSchema(args []string) {
	cfg := loadConfig(args, "schema")

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	gw, err := storage.New(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := gw.CreateSchema(ctx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	fmt.Println("Schema created")
}

// cmdServe starts the session tracker
func cmdServe(args []string) {
	cfg := loadConfig(args, "serve")

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("sessiond starting",
		zap.String("version", version),
		zap.String("backend", cfg.Database.Backend))

	// The gateway must construct before any event handler exists;
	// an unsupported backend dies here.
	gw, err := storage.New(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer gw.Close()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	if err := gw.CreateSchema(startCtx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	// Resolve the tracked server record once at startup
	srv, err := gw.GetServer(startCtx, cfg.Server.PublicIP, cfg.Server.GamePort)
	if err != nil {
		log.Fatalf("Failed to resolve server record: %v", err)
	}
	logger.Info("server resolved",
		zap.Int64("server_id", srv.ID),
		zap.String("ip", cfg.Server.PublicIP),
		zap.Uint16("port", cfg.Server.GamePort))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := tracker.New(logger, gw, srv, cfg.Server.Heartbeat)

	router := api.NewRouter(tr, logger)
	router.StartHub()
	tr.SetBroadcast(router.Hub().Broadcast)

	feed := source.NewFeed(
		fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.EventPort), tr, logger)
	if err := feed.Start(); err != nil {
		log.Fatalf("Failed to start event feed: %v", err)
	}
	go feed.Run(ctx)
	go tr.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	// Stops the feed and drains in-flight connect resolutions
	cancel()
	logger.Info("shutdown complete")
}
