package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
)

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context) ([]models.Event, error)
}

type Ledger interface {
	RecordScore(ctx context.Context, eventID, houseID int64, points int) (*models.ScoreEntry, error)
	AmendScore(ctx context.Context, eventID, houseID int64, points int, reason, actor string) (*models.ScoreEntry, error)
}

type Leaderboard interface {
	ComputeLeaderboard(ctx context.Context) ([]scoring.Standing, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, message, url string) (int, error)
}

// Deps are the services the bot drives.
type Deps struct {
	Events      EventStore
	Ledger      Ledger
	Leaderboard Leaderboard
	Broadcaster Broadcaster
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	deps   Deps
	api    *tgbotapi.BotAPI
	sender sender
	admins map[int64]bool
}

func New(config Config, deps Deps) (*Bot, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("bot.token is not configured")
	}
	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	b := newBot(config, deps, api)
	b.api = api
	return b, nil
}

func newBot(config Config, deps Deps, s sender) *Bot {
	admins := make(map[int64]bool)
	for _, id := range config.AdminIDs {
		admins[id] = true
	}

	return &Bot{
		deps:   deps,
		sender: s,
		admins: admins,
	}
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			b.api.StopReceivingUpdates()
			return nil
		}
	}
}
