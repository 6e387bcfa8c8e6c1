package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/locu5t/civicomfy-go/api"
	"github.com/locu5t/civicomfy-go/api/handlers"
	"github.com/locu5t/civicomfy-go/internal/app"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"github.com/locu5t/civicomfy-go/internal/engine"
	"github.com/locu5t/civicomfy-go/internal/infrastructure"
	"github.com/locu5t/civicomfy-go/pkg/logger"
)

var version = "dev"

var (
	configPath = flag.String("config", "", "Path to config file (default: search ./configs, ~/.civicomfy, /etc/civicomfy)")
	daemonize  = flag.Bool("daemon", false, "Detach and run the server in the background")
)

func main() {
	flag.Parse()

	if *daemonize {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary without -daemon in a new session
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	args := []string{}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Env = os.Environ()
	setDetached(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	console, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		Service:    "civicomfy-server",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer console.Sync()

	// Initialize multi-logger (3 categories: queue, download, error)
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
		Console: console,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize multi-logger: %w", err)
	}
	defer multiLog.Close()

	console.Info("Starting civicomfy server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("base_dir", config.Download.BaseDir),
		zap.Int("concurrent_limit", config.Queue.ConcurrentLimit))

	if err := os.MkdirAll(config.Download.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	factory := infrastructure.NewHTTPClientFactory(config.HTTP)
	eng := engine.New(
		factory.TransferClient(),
		factory.ProbeClient(multiLog.Download()),
		engine.OptionsFromConfig(config.Download, config.HTTP),
		multiLog.Download(),
	)

	downloadMgr := app.NewDownloadManager(eng, multiLog.Download())
	queueMgr := app.NewQueueManager(downloadMgr, &config.Queue, multiLog)

	var archive domain.ArchiveRepository
	if config.Archive.Enabled {
		repo, err := infrastructure.NewSQLiteArchiveRepository(config.Archive.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer repo.Close()
		archive = repo
		queueMgr.OnFinished(app.NewArchiveHook(repo, multiLog.Error()))
	}

	notifier := infrastructure.NewNotificationService(&config.Notification, console)
	queueMgr.OnFinished(notifier.HandleFinished)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queueMgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue manager: %w", err)
	}

	handlers.Version = version
	router := api.SetupRouter(api.RouterConfig{
		QueueManager:       queueMgr,
		Archive:            archive,
		BaseDir:            config.Download.BaseDir,
		DefaultConnections: config.Download.Connections,
		Logger:             console,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		console.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		console.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	console.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		console.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := queueMgr.Stop(); err != nil {
		console.Error("Error stopping queue manager", zap.Error(err))
	}

	console.Info("Server exited")
	return runErr
}
