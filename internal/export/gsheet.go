package export

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
)

const exportTimeout = time.Minute

type Leaderboard interface {
	ComputeLeaderboard(ctx context.Context) ([]scoring.Standing, error)
}

type valuesWriter interface {
	Update(ctx context.Context, sheetID, writeRange string, values [][]interface{}) error
}

type sheetsWriter struct {
	svc *sheets.Service
}

func (w sheetsWriter) Update(ctx context.Context, sheetID, writeRange string, values [][]interface{}) error {
	_, err := w.svc.Spreadsheets.Values.Update(sheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

type target struct {
	config app.GSheetConfig
	writer valuesWriter
}

// GSheetExporter periodically copies the standings into Google Sheets.
type GSheetExporter struct {
	leaderboard Leaderboard
	emoji       []string
	scheduler   *gocron.Scheduler
	targets     []target
	now         func() time.Time
}

func NewGSheetExporter(config *app.Config, leaderboard Leaderboard) (*GSheetExporter, error) {
	ctx := context.Background()
	e := &GSheetExporter{
		leaderboard: leaderboard,
		emoji:       config.EmojiVariants,
		scheduler:   gocron.NewScheduler(time.UTC),
		now:         time.Now,
	}

	for _, cfg := range config.GSheet {
		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}
		if err := e.schedule(cfg, sheetsWriter{svc: svc}); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *GSheetExporter) schedule(cfg app.GSheetConfig, w valuesWriter) error {
	if cfg.Schedule == "" {
		return fmt.Errorf("sheet %s has no schedule", cfg.SheetName)
	}
	t := target{config: cfg, writer: w}
	_, err := e.scheduler.Cron(cfg.Schedule).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		if err := e.Export(ctx, t); err != nil {
			logger.Error.Printf("Export to %s failed: %v", cfg.SheetName, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export to %s: %w", cfg.SheetName, err)
	}
	e.targets = append(e.targets, t)
	return nil
}

func (e *GSheetExporter) Start() {
	e.scheduler.StartAsync()
}

func (e *GSheetExporter) Stop() {
	e.scheduler.Stop()
}

// ExportAll runs every configured export once.
func (e *GSheetExporter) ExportAll(ctx context.Context) error {
	for _, t := range e.targets {
		if err := e.Export(ctx, t); err != nil {
			return fmt.Errorf("%s: %w", t.config.SheetName, err)
		}
	}
	return nil
}

func (e *GSheetExporter) Export(ctx context.Context, t target) error {
	standings, err := e.leaderboard.ComputeLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute leaderboard: %w", err)
	}

	cfg := t.config
	standingsRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.StandingsRange)
	if err := t.writer.Update(ctx, cfg.SheetID, standingsRange, standingsRows(standings)); err != nil {
		return fmt.Errorf("failed to update standings: %w", err)
	}

	timestamp := fmt.Sprintf("UPD: %s", e.now().Format("2 January 15:04"))
	if len(e.emoji) > 0 {
		timestamp += " " + e.emoji[rand.IntN(len(e.emoji))]
	}
	timestampRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.TimestampRange)
	if err := t.writer.Update(ctx, cfg.SheetID, timestampRange, [][]interface{}{{timestamp}}); err != nil {
		return fmt.Errorf("failed to update timestamp: %w", err)
	}

	logger.Debug.Printf("Exported %d houses to %s", len(standings), cfg.SheetName)
	return nil
}

// standingsRows lays out rank, house, points, wins, participation,
// points per day and trend.
func standingsRows(standings []scoring.Standing) [][]interface{} {
	rows := make([][]interface{}, 0, len(standings))
	for _, s := range standings {
		rows = append(rows, []interface{}{
			s.Rank,
			s.House.Name,
			s.Points,
			s.Wins,
			fmt.Sprintf("%d%%", s.ParticipationRate),
			s.PointsPerDay,
			string(s.Trend),
		})
	}
	return rows
}
