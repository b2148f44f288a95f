package main

import (
	"context"
	"flag"
	"os"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/app"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	var matric = flag.String("matric", "", "Admin login (matric number)")
	var name = flag.String("name", "", "Admin display name")
	flag.Parse()

	password := os.Getenv("HOUSECUP_ADMIN_PASSWORD")
	if *matric == "" || *name == "" || password == "" {
		logger.Error.Fatalf("Usage: HOUSECUP_ADMIN_PASSWORD=... admin -matric <matric> -name <name>")
	}

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	admin, err := service.CreateAdmin(context.Background(), *matric, *name, password)
	if err != nil {
		logger.Error.Fatalf("Failed to create admin: %v", err)
	}
	logger.Info.Printf("Admin %s created with id %d", admin.Matric, admin.ID)
}
