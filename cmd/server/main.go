package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-console/internal/audit"
	"admin-console/internal/config"
	"admin-console/internal/handlers"
	"admin-console/internal/logger"
	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/notify"
	"admin-console/internal/panel"
	"admin-console/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	resetPw = flag.String("reset-password", "", "Reset console password to the specified value")
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.Parse()

	printBanner()

	if *resetPw != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if err := config.ResetConsolePassword(cfg, *resetPw); err != nil {
			log.Fatalf("Failed to reset password: %v", err)
		}
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Printf("Console password has been reset to: %s\n", *resetPw)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.IsDebug()); err != nil {
		log.Printf("Failed to init logger, using silent: %v", err)
		logger.InitSilent()
	}
	defer logger.Sync()

	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	client := upstream.New(cfg.Upstream)
	hub := notify.NewHub()
	recorder := audit.NewRecorder(db)

	registry := buildRegistry(cfg, client, hub, recorder)

	router := chi.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.RequestLogger)
	router.Use(middleware.MaxRequestSize(1 << 20))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(db, client)
	healthHandler.RegisterRoutes(router)

	consoleHandler := handlers.NewConsoleHandler(registry, client, hub, recorder)
	consoleAuth := middleware.NewConsoleAuth(cfg.Console)

	router.Group(func(r chi.Router) {
		r.Use(consoleAuth.Handler)
		consoleHandler.RegisterRoutes(r)
		consoleHandler.RegisterWS(r)
	})

	if cfg.Prometheus.Enabled {
		metricsHandler := handlers.NewMetricsHandler(cfg.Prometheus.Username, cfg.Prometheus.Password)
		metricsHandler.RegisterRoutes(router)
		log.Printf("Prometheus metrics enabled at /metrics (auth: %s)", cfg.Prometheus.Username)
	}

	serverPort := cfg.Server.Port
	if *port > 0 {
		serverPort = *port
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, serverPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if cfg.Server.HTTPS.Enabled && cfg.Server.HTTPS.CertFile != "" && cfg.Server.HTTPS.KeyFile != "" {
			log.Fatal(server.ListenAndServeTLS(cfg.Server.HTTPS.CertFile, cfg.Server.HTTPS.KeyFile))
		} else {
			log.Fatal(server.ListenAndServe())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// buildRegistry mounts one panel controller per configured endpoint and
// wires the audit hook.
func buildRegistry(cfg *config.Config, client *upstream.Client, hub *notify.Hub, recorder *audit.Recorder) *panel.Registry {
	registry := panel.NewRegistry()
	actor := cfg.Console.Username

	for name, pc := range cfg.Panels {
		ep := upstream.EndpointFromConfig(name, pc)
		c := panel.NewController(name, client.Panel(ep), hub)
		c.SetOnSaved(func(panelName string, changedKeys []string) {
			if err := recorder.Record(panelName, actor, changedKeys); err != nil {
				log.Printf("[AUDIT] Failed to record change for %s: %v", panelName, err)
			}
		})
		registry.Register(c)
	}

	return registry
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SettingsChange{},
	)
}

func printBanner() {
	fmt.Println("Admin Console v" + version + " (" + commit + ", " + buildTime + ")")
}
