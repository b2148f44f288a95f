package main

import (
	"flag"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/bot"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to init service: %v", err)
	}
	defer service.Close()

	b, err := bot.New(service.Config.Bot, bot.Deps{
		Events:      service.Store,
		Ledger:      service.Ledger,
		Leaderboard: service.Leaderboard,
		Broadcaster: service.Notifier,
	})
	if err != nil {
		logger.Error.Fatalf("Failed to create bot: %v", err)
	}

	logger.Info.Println("Bot initialized successfully")
	if err := b.Start(); err != nil {
		logger.Error.Fatalf("Bot error: %v", err)
	}
}
