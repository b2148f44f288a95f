package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const commandTimeout = 30 * time.Second

const (
	publicHelp = `Available commands:
/leaderboard - Current house standings
/help - Show this message`

	adminHelp = `Available commands:
/leaderboard - Current house standings
/event add <category> <YYYY-MM-DD> <HH:MM> <title> - Create an event
/event list - List events
/score add <event_id> <house_id> <points> - Record a score
/score amend <event_id> <house_id> <points> <reason> - Correct a recorded score
/notify <message> - Send an announcement to every student
/help - Show this message

Examples:
/event add major 2024-03-04 10:00 Football Final
/score add 3 2 50
/score amend 3 2 45 photo finish review
/notify Closing ceremony starts at 6pm`
)

type commandHandler func(context.Context, *tgbotapi.Message) error

func (b *Bot) routePublicCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":       b.handleStart,
		"help":        b.handleHelp,
		"leaderboard": b.handleLeaderboard,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"event":  b.handleEvent,
		"score":  b.handleScore,
		"notify": b.handleNotify,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := msg.Command()

	if handler, ok := b.routePublicCommands(cmd); ok {
		b.run(ctx, handler, msg)
		return
	}

	if b.isAdmin(msg) {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			b.run(ctx, handler, msg)
			return
		}
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) run(ctx context.Context, handler commandHandler, msg *tgbotapi.Message) {
	if err := handler(ctx, msg); err != nil {
		logger.Error.Printf("Command error: %v", err)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
	}
}

func (b *Bot) isAdmin(msg *tgbotapi.Message) bool {
	return msg.From != nil && b.admins[msg.From.ID]
}

func (b *Bot) handleHelp(_ context.Context, msg *tgbotapi.Message) error {
	text := publicHelp
	if b.isAdmin(msg) {
		text = adminHelp
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Use commands to talk to the bot. Send /help for the list.")
}

func (b *Bot) handleStart(_ context.Context, msg *tgbotapi.Message) error {
	text := "Welcome to the House Cup!\n\n"
	if b.isAdmin(msg) {
		text += "You are a sports week admin. Use /help for the list of commands."
	} else {
		text += "Use /leaderboard to see how the houses are doing."
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleLeaderboard(ctx context.Context, msg *tgbotapi.Message) error {
	standings, err := b.deps.Leaderboard.ComputeLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute leaderboard: %w", err)
	}
	if len(standings) == 0 {
		return b.sendMessage(msg.Chat.ID, "No houses yet")
	}

	var text strings.Builder
	text.WriteString("🏆 House standings\n\n")
	for _, s := range standings {
		text.WriteString(fmt.Sprintf("%d. %s - %d pts (%d wins, %s)\n",
			s.Rank, s.House.Name, s.Points, s.Wins, s.Trend))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func (b *Bot) handleEvent(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Usage:\n"+
			"/event add <category> <YYYY-MM-DD> <HH:MM> <title> - Create an event\n"+
			"/event list - List events")
	}

	switch args[0] {
	case "add":
		event, err := parseEvent(args[1:])
		if err != nil {
			return err
		}
		if err := b.deps.Events.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Event #%d created: %s (%s) on %s at %s",
			event.ID, event.Title, event.Category.Label(), event.Day, event.Time))
	case "list":
		return b.handleEventList(ctx, msg.Chat.ID)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func parseEvent(args []string) (*models.Event, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("usage: add <category> <YYYY-MM-DD> <HH:MM> <title>")
	}
	event := &models.Event{
		Category: models.Category(strings.ToLower(args[0])),
		Day:      args[1],
		Time:     args[2],
		Title:    strings.Join(args[3:], " "),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func (b *Bot) handleEventList(ctx context.Context, chatID int64) error {
	events, err := b.deps.Events.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	if len(events) == 0 {
		return b.sendMessage(chatID, "No events found")
	}

	var text strings.Builder
	text.WriteString("Events:\n\n")
	for _, e := range events {
		text.WriteString(fmt.Sprintf("📝 #%d %s (%s)\n📅 %s %s\n\n", e.ID, e.Title, e.Category.Label(), e.Day, e.Time))
	}
	return b.sendMessage(chatID, text.String())
}

type scoreArgs struct {
	eventID int64
	houseID int64
	points  int
	reason  string
}

func parseScore(args []string, withReason bool) (scoreArgs, error) {
	want := 3
	if withReason {
		want = 4
	}
	if len(args) < want {
		if withReason {
			return scoreArgs{}, fmt.Errorf("usage: amend <event_id> <house_id> <points> <reason>")
		}
		return scoreArgs{}, fmt.Errorf("usage: add <event_id> <house_id> <points>")
	}

	var parsed scoreArgs
	var err error
	if parsed.eventID, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return parsed, fmt.Errorf("invalid event id %q", args[0])
	}
	if parsed.houseID, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return parsed, fmt.Errorf("invalid house id %q", args[1])
	}
	if parsed.points, err = strconv.Atoi(args[2]); err != nil {
		return parsed, fmt.Errorf("invalid points %q", args[2])
	}
	if withReason {
		parsed.reason = strings.Join(args[3:], " ")
	}
	return parsed, nil
}

func (b *Bot) handleScore(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Usage:\n"+
			"/score add <event_id> <house_id> <points> - Record a score\n"+
			"/score amend <event_id> <house_id> <points> <reason> - Correct a recorded score")
	}

	switch args[0] {
	case "add":
		parsed, err := parseScore(args[1:], false)
		if err != nil {
			return err
		}
		entry, err := b.deps.Ledger.RecordScore(ctx, parsed.eventID, parsed.houseID, parsed.points)
		if err != nil {
			return err
		}
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Recorded %d points for house #%d in event #%d",
			entry.Points, entry.HouseID, entry.EventID))
	case "amend":
		parsed, err := parseScore(args[1:], true)
		if err != nil {
			return err
		}
		entry, err := b.deps.Ledger.AmendScore(ctx, parsed.eventID, parsed.houseID, parsed.points, parsed.reason, actorOf(msg))
		if err != nil {
			return err
		}
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ House #%d now has %d points in event #%d\nReason: %s",
			entry.HouseID, entry.Points, entry.EventID, parsed.reason))
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func actorOf(msg *tgbotapi.Message) string {
	if msg.From.UserName != "" {
		return "telegram:@" + msg.From.UserName
	}
	return fmt.Sprintf("telegram:%d", msg.From.ID)
}

func (b *Bot) handleNotify(ctx context.Context, msg *tgbotapi.Message) error {
	message := strings.TrimSpace(msg.CommandArguments())
	if message == "" {
		return fmt.Errorf("usage: /notify <message>")
	}

	recipients, err := b.deps.Broadcaster.Broadcast(ctx, message, "")
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("📣 Sent to %d students", recipients))
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.sender.Send(msg)
	return err
}
