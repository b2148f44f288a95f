package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
)

type staticLeaderboard struct {
	standings []scoring.Standing
	err       error
}

func (s staticLeaderboard) ComputeLeaderboard(context.Context) ([]scoring.Standing, error) {
	return s.standings, s.err
}

type update struct {
	sheetID string
	rng     string
	values  [][]interface{}
}

type recordingWriter struct {
	updates []update
}

func (w *recordingWriter) Update(_ context.Context, sheetID, writeRange string, values [][]interface{}) error {
	w.updates = append(w.updates, update{sheetID: sheetID, rng: writeRange, values: values})
	return nil
}

func newTestExporter(lb Leaderboard) *GSheetExporter {
	return &GSheetExporter{
		leaderboard: lb,
		emoji:       []string{"🏆"},
		scheduler:   gocron.NewScheduler(time.UTC),
		now:         func() time.Time { return time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC) },
	}
}

func TestExportWritesStandingsAndTimestamp(t *testing.T) {
	e := newTestExporter(staticLeaderboard{standings: []scoring.Standing{
		{Rank: 1, House: models.House{Name: "House Stark"}, Points: 80, Wins: 3, ParticipationRate: 75, PointsPerDay: 40, Trend: scoring.TrendUp},
		{Rank: 2, House: models.House{Name: "House Greyjoy"}, Trend: scoring.TrendStable},
	}})
	w := &recordingWriter{}
	cfg := app.GSheetConfig{SheetID: "sheet-1", SheetName: "Cup", Schedule: "*/5 * * * *", StandingsRange: "A2:G", TimestampRange: "I1"}
	require.NoError(t, e.schedule(cfg, w))

	require.NoError(t, e.ExportAll(context.Background()))

	require.Len(t, w.updates, 2)
	assert.Equal(t, update{
		sheetID: "sheet-1",
		rng:     "Cup!A2:G",
		values: [][]interface{}{
			{1, "House Stark", 80, 3, "75%", 40, "up"},
			{2, "House Greyjoy", 0, 0, "0%", 0, "stable"},
		},
	}, w.updates[0])
	assert.Equal(t, update{
		sheetID: "sheet-1",
		rng:     "Cup!I1",
		values:  [][]interface{}{{"UPD: 5 March 18:30 🏆"}},
	}, w.updates[1])
}

func TestExportStopsOnLeaderboardError(t *testing.T) {
	e := newTestExporter(staticLeaderboard{err: errors.New("db down")})
	w := &recordingWriter{}
	require.NoError(t, e.schedule(app.GSheetConfig{SheetName: "Cup", Schedule: "0 * * * *"}, w))

	err := e.ExportAll(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, w.updates)
}

func TestScheduleRequiresCron(t *testing.T) {
	e := newTestExporter(staticLeaderboard{})
	assert.Error(t, e.schedule(app.GSheetConfig{SheetName: "Cup"}, &recordingWriter{}))
	assert.Error(t, e.schedule(app.GSheetConfig{SheetName: "Cup", Schedule: "not a cron"}, &recordingWriter{}))
}
