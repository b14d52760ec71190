package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"bento-route-planner/internal/config"
	"bento-route-planner/internal/database"
	"bento-route-planner/internal/server"
	"bento-route-planner/internal/sysinfo"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logStartup(cfg)

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if cfg.OpenBrowser {
		go func() {
			// give the listener a moment before the browser connects
			time.Sleep(500 * time.Millisecond)
			url := fmt.Sprintf("http://%s", addr)
			if err := openBrowser(url); err != nil {
				log.Printf("Could not open browser: %v", err)
				return
			}
			log.Printf("Opened browser at %s", url)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received signal %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shut down the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

func logStartup(cfg *config.Config) {
	info := sysinfo.Collect()
	log.Printf("Host: platform=%s cpu=%s ram=%s", info.Platform, info.CPU, info.RAM)
	log.Printf("Store: backend=%s", database.ResolveBackend(cfg.DatabaseURL, cfg.DBPath))
	log.Printf("Routing: depot=%s geocoder=%s two_opt=%v speeds=%v dwell=%vmin",
		cfg.DepotName, cfg.Geocoder, cfg.TwoOpt, cfg.SpeedsKmh, cfg.DwellMinutes)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
