package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mangadl/manga-downloader/internal/api"
	"github.com/mangadl/manga-downloader/internal/config"
	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/connector/examplesite"
	"github.com/mangadl/manga-downloader/internal/connector/mangadex"
	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/platform"
	"github.com/mangadl/manga-downloader/internal/task"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	log.Printf("MangaDL v%s starting...", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := platform.CreateDirectoryIfNotExists(cfg.DownloadDir); err != nil {
		log.Fatalf("failed to ensure download dir %s: %v", cfg.DownloadDir, err)
	}

	bus := event.NewBus()
	defer bus.Close()

	registry := connector.NewRegistry(bus)
	loaded := registry.Load(
		mangadex.New(),
		examplesite.New(),
	)
	log.Printf("loaded %d connectors", loaded)

	orchestrator := task.NewService(registry, bus, cfg)
	server := api.NewServer(orchestrator, registry, bus)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("shutting down...")
		if err := server.Shutdown(); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	if err := server.Listen(cfg.APIPort); err != nil {
		log.Fatalf("server error: %v", err)
	}

	orchestrator.Shutdown()
	log.Println("all downloads stopped, bye")
}
