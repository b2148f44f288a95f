package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if _, err := service.SeedHouses(context.Background()); err != nil {
		logger.Error.Fatalf("Failed to seed houses: %v", err)
	}

	mux := http.NewServeMux()
	handlers.NewHandler(service).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	logger.Info.Printf("Starting housecup server on %s", service.Config.Server.Port)
	logger.Debug.Printf("Auth enabled: %t", service.Config.Server.EnableAuth)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, mux); err != nil {
		logger.Error.Fatalf("Housecup server failed: %v", err)
	}
}
