package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
	"github.com/shrimpsizemoose/housecup/internal/store/sqlite"
)

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context) {
	m.Called(ctx)
}

type chanObserver chan Write

func (c chanObserver) ScoreRecorded(_ context.Context, w Write) {
	c <- w
}

type fixture struct {
	store  *sqlite.SQLiteStore
	houses []models.House
	events []models.Event
}

func setup(t *testing.T) *fixture {
	s, err := sqlite.NewSQLiteStore(":memory:", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	f := &fixture{store: s, houses: models.DefaultHouses()[:2]}
	for i := range f.houses {
		require.NoError(t, s.CreateHouse(ctx, &f.houses[i]))
	}
	f.events = []models.Event{
		{Title: "Event A", Day: "2024-03-01", Time: "10:00", Category: models.CategoryMajor},
		{Title: "Event B", Day: "2024-03-01", Time: "12:00", Category: models.CategoryTrivia},
	}
	for i := range f.events {
		require.NoError(t, s.CreateEvent(ctx, &f.events[i]))
	}
	return f
}

func TestRecordScoreRejectsDuplicates(t *testing.T) {
	f := setup(t)
	inv := new(MockInvalidator)
	inv.On("Invalidate", mock.Anything).Return()
	l := New(f.store, WithInvalidator(inv))
	ctx := context.Background()

	eventA, house1 := f.events[0].ID, f.houses[0].ID

	entry, err := l.RecordScore(ctx, eventA, house1, 10)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.NotZero(t, entry.CreatedAt)

	_, err = l.RecordScore(ctx, eventA, house1, 5)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.ErrorIs(t, err, models.ErrDuplicateEntry)

	total, err := l.TotalPointsForHouse(ctx, house1)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	inv.AssertNumberOfCalls(t, "Invalidate", 1)
}

func TestRecordScoreValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		_, err := New(f.store).RecordScore(ctx, 999, f.houses[0].ID, 1)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unknown house", func(t *testing.T) {
		_, err := New(f.store).RecordScore(ctx, f.events[0].ID, 999, 1)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("negative points rejected by default", func(t *testing.T) {
		_, err := New(f.store).RecordScore(ctx, f.events[0].ID, f.houses[0].ID, -5)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("negative points allowed as penalties", func(t *testing.T) {
		entry, err := New(f.store, WithNegativePoints(true)).RecordScore(ctx, f.events[1].ID, f.houses[1].ID, -5)
		require.NoError(t, err)
		assert.Equal(t, -5, entry.Points)
	})

	t.Run("zero points", func(t *testing.T) {
		_, err := New(f.store).RecordScore(ctx, f.events[1].ID, f.houses[0].ID, 0)
		assert.NoError(t, err)
	})
}

func TestAggregationConsistency(t *testing.T) {
	f := setup(t)
	l := New(f.store)
	ctx := context.Background()

	writes := []struct {
		event, house int64
		points       int
	}{
		{f.events[0].ID, f.houses[0].ID, 30},
		{f.events[0].ID, f.houses[1].ID, 20},
		{f.events[1].ID, f.houses[0].ID, 7},
	}
	sums := map[int64]int{}
	for _, w := range writes {
		_, err := l.RecordScore(ctx, w.event, w.house, w.points)
		require.NoError(t, err)
		sums[w.house] += w.points

		totals, err := f.store.HouseTotals(ctx, 0)
		require.NoError(t, err)
		for _, ht := range totals {
			got, err := l.TotalPointsForHouse(ctx, ht.HouseID)
			require.NoError(t, err)
			assert.Equal(t, sums[ht.HouseID], got)
			assert.Equal(t, ht.Points, got)
		}
	}
}

func TestAmendScore(t *testing.T) {
	f := setup(t)
	obs := make(chanObserver, 4)
	l := New(f.store, WithObserver(obs))
	ctx := context.Background()

	eventA, house1 := f.events[0].ID, f.houses[0].ID

	t.Run("missing entry", func(t *testing.T) {
		_, err := l.AmendScore(ctx, eventA, house1, 15, "recount", "ADMIN")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	_, err := l.RecordScore(ctx, eventA, house1, 10)
	require.NoError(t, err)
	<-obs

	t.Run("reason required", func(t *testing.T) {
		_, err := l.AmendScore(ctx, eventA, house1, 15, "", "ADMIN")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("amend in place with audit", func(t *testing.T) {
		entry, err := l.AmendScore(ctx, eventA, house1, 15, "judges recount", "ADMIN")
		require.NoError(t, err)
		assert.Equal(t, 15, entry.Points)

		select {
		case w := <-obs:
			assert.Equal(t, KindAmend, w.Kind)
			assert.Equal(t, 5, w.Delta)
			assert.Equal(t, "Event A", w.EventTitle)
		case <-time.After(time.Second):
			t.Fatal("observer was not notified")
		}

		amendments, err := f.store.ListAmendments(ctx, entry.ID)
		require.NoError(t, err)
		require.Len(t, amendments, 1)
		assert.Equal(t, 10, amendments[0].PreviousPoints)
		assert.Equal(t, 15, amendments[0].NewPoints)
		assert.Equal(t, "ADMIN", amendments[0].AmendedBy)
	})
}

func TestAccrueInTx(t *testing.T) {
	f := setup(t)
	l := New(f.store)
	ctx := context.Background()

	accrue := func(delta int) Write {
		var w Write
		err := f.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			w, err = l.AccrueInTx(ctx, tx, f.events[1].ID, f.houses[1].ID, delta, "qr scan", "TRE/1")
			return err
		})
		require.NoError(t, err)
		l.Committed(ctx, w)
		return w
	}

	first := accrue(10)
	assert.Equal(t, 10, first.Entry.Points)
	second := accrue(15)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, 25, second.Entry.Points)
	assert.Equal(t, KindAccrue, second.Kind)

	amendments, err := f.store.ListAmendments(ctx, second.Entry.ID)
	require.NoError(t, err)
	assert.Len(t, amendments, 1)

	t.Run("rolled back with the surrounding transaction", func(t *testing.T) {
		err := f.store.WithTx(ctx, func(tx store.Tx) error {
			if _, err := l.AccrueInTx(ctx, tx, f.events[1].ID, f.houses[1].ID, 100, "qr scan", "TRE/2"); err != nil {
				return err
			}
			return models.ErrAlreadyScanned
		})
		assert.ErrorIs(t, err, models.ErrAlreadyScanned)

		total, err := l.TotalPointsForHouse(ctx, f.houses[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 25, total)
	})
}
