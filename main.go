package main

import (
	"context"
	"errorshield/cli"
	"errorshield/config"
	"errorshield/core"
	"errorshield/database"
	"errorshield/handlers"
	"errorshield/service"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func main() {
	// Load environment variables and parse CLI flags
	config.ParseFlags()

	if config.Settings.CLIMode {
		mainCLI()
		return
	}

	logFile, err := setupLogging(config.Settings.LogFilePath, config.Settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := logrus.StandardLogger()
	logger.Info("System starting up...")

	// Without the settings store the shield keeps running on defaults
	if err := database.InitDB(); err != nil {
		logger.WithError(err).Error("Failed to initialize database, using default log settings")
	}

	services := service.InitServices(database.DB, service.Options{
		Fs:           afero.NewOsFs(),
		ContentRoot:  config.Settings.ContentRoot,
		HtaccessPath: config.Settings.HtaccessPath,
		Logger:       logger,
	})

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
	}
	gate := core.NewRuntimeGate(srv)
	gate.Apply()

	gin.DefaultWriter = logger.WriterLevel(logrus.InfoLevel)

	r := gin.New()
	r.Use(
		core.RequestID(),
		gin.LoggerWithConfig(gin.LoggerConfig{
			Output:    gin.DefaultWriter,
			SkipPaths: []string{"/api/health"},
		}),
		core.Shield(core.ShieldConfig{
			Config:       services.Settings,
			Defaults:     services.Settings.Defaults(),
			Sink:         core.NewLogSink(services.Logs.Fs(), logger),
			Scrubber:     core.NewScrubber(),
			Gate:         gate,
			HomeURL:      config.Settings.HomeURL,
			IsAdmin:      core.AdminPathMatcher(config.Settings.AdminPathPrefix),
			AdminFailure: handlers.AdminFailure,
			Logger:       logger,
		}),
	)

	adminNetworks, err := core.NewAdminNetworks(config.Settings.AdminAllowCIDRs, config.Settings.AdminDenyCIDRs)
	if err != nil {
		logger.WithError(err).Fatal("Invalid admin network lists")
	}

	r.GET("/api/health", handlers.HealthCheck)
	handlers.RegisterAdminRoutes(r, config.Settings.AdminPathPrefix, config.Settings.AdminPasswordHash, adminNetworks.Middleware())
	if config.Settings.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is empty, the admin API is not protected")
	}

	if config.Settings.DemoRoutes {
		handlers.RegisterDemoRoutes(r)
	}

	// Everything else is the front-end site
	if config.Settings.UpstreamURL != "" {
		proxy, err := handlers.NewUpstreamProxy(config.Settings.UpstreamURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Invalid upstream")
		}
		r.NoRoute(proxy)
		logger.WithField("upstream", config.Settings.UpstreamURL).Info("Front-end proxied to upstream")
	} else {
		r.NoRoute(handlers.NewStaticSite(config.Settings.SiteDir))
		logger.WithField("dir", config.Settings.SiteDir).Info("Front-end served from static directory")
	}

	listener, port, err := listenAvailablePort(config.Settings.Port)
	if err != nil {
		logger.WithError(err).Fatal("No available ports found")
	}
	if port != config.Settings.Port {
		logger.Infof("Default port %d is busy. Switched to %d", config.Settings.Port, port)
	}
	srv.Handler = r

	go func() {
		logger.Infof("Server starting on http://127.0.0.1:%d", port)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()
	fmt.Printf("Error Shield listening on http://127.0.0.1:%d (log: %s)\n", port, config.Settings.LogFilePath)

	shutdownChan := make(chan bool, 1)
	handlers.SetShutdownChannel(shutdownChan)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Received interrupt signal")
	case <-shutdownChan:
		logger.Info("Shutdown triggered via API")
	}

	logger.Info("System shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Server forced to shutdown")
	}

	if err := database.CloseDB(); err != nil {
		logger.WithError(err).Warn("Error closing database")
	}

	logger.Info("Server exited")
}

// listenAvailablePort listens on the first free port starting at startPort.
func listenAvailablePort(startPort int) (net.Listener, int, error) {
	var lastErr error
	for port := startPort; port < startPort+100; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err == nil {
			return listener, port, nil
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

// mainCLI entrypoint for CLI (admin HTTP client mode)
func mainCLI() {
	profiles, err := cli.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading CLI profiles: %v\n", err)
		os.Exit(1)
	}

	server, err := profiles.Resolve(config.Settings.CLIServer)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Known profiles: %v\n", profiles.ServerNames())
		os.Exit(1)
	}

	fmt.Printf("Error Shield CLI - Connecting to %s\n", server.URL)

	cliInstance, err := cli.NewCLIHttp(server)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("\nTips:")
		fmt.Println("  1. Make sure the errorshield server is running:")
		fmt.Println("     ./errorshield")
		fmt.Println("  2. Or specify a different server or profile:")
		fmt.Println("     ./errorshield --cli --server http://your-server:8080")
		os.Exit(1)
	}

	// readline handles Ctrl+C
	cliInstance.Start()
}
