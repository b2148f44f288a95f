package sqlite

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
)

func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:", "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

type testData struct {
	store  *SQLiteStore
	now    time.Time
	houses []models.House
	events []models.Event
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	houses := models.DefaultHouses()[:3]
	for i := range houses {
		require.NoError(t, s.CreateHouse(ctx, &houses[i]), "Failed to create house")
	}

	events := []models.Event{
		{Title: "Football", Day: "2024-01-15", Time: "10:00", Category: models.CategoryMajor, Venue: "Main field"},
		{Title: "Chess", Day: "2024-01-15", Time: "14:00", Category: models.CategoryMinor, Venue: "Hall B"},
	}
	for i := range events {
		require.NoError(t, s.CreateEvent(ctx, &events[i]), "Failed to create event")
	}

	return &testData{
		store:  s,
		now:    now,
		houses: houses,
		events: events,
	}, cleanup
}

func (td *testData) student(t *testing.T, matric string) *models.Student {
	st := &models.Student{
		Matric:       matric,
		Name:         "Ada Obi",
		Level:        "200",
		Department:   "Computer Science",
		Role:         models.RoleStudent,
		RegisteredAt: td.now.Unix(),
	}
	require.NoError(t, td.store.CreateStudent(context.Background(), st))
	return st
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func TestHouseOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("list in registration order", func(t *testing.T) {
		houses, err := td.store.ListHouses(ctx)
		require.NoError(t, err)
		require.Len(t, houses, 3)
		assert.Equal(t, "lannister", houses[0].Slug)
		assert.Equal(t, "targaryen", houses[2].Slug)
	})

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		dup := models.House{Slug: "stark", Name: "Another Stark"}
		err := td.store.CreateHouse(ctx, &dup)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("get non-existent house", func(t *testing.T) {
		house, err := td.store.GetHouse(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, house)
	})

	t.Run("update display of missing house", func(t *testing.T) {
		err := td.store.UpdateHouseDisplay(ctx, &models.House{ID: 999, Name: "x"})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("counts include empty houses", func(t *testing.T) {
		counts, err := td.store.HouseCounts(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 3)
		for _, c := range counts {
			assert.Equal(t, 0, c.Members)
		}
	})
}

func TestStudentAssignment(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	st := td.student(t, "csc/2020/001")

	t.Run("matric is normalized", func(t *testing.T) {
		got, err := td.store.GetStudentByMatric(ctx, " CSC/2020/001 ")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, st.ID, got.ID)
		assert.False(t, got.AssignmentComplete)
		assert.Nil(t, got.HouseID)
	})

	t.Run("duplicate matric conflicts", func(t *testing.T) {
		dup := &models.Student{Matric: st.Matric, Name: "Other", Role: models.RoleStudent, RegisteredAt: td.now.Unix()}
		err := td.store.CreateStudent(ctx, dup)
		assert.ErrorIs(t, err, models.ErrDuplicateMatric)
	})

	t.Run("complete assignment once", func(t *testing.T) {
		ok, err := td.store.CompleteAssignment(ctx, st.ID, td.houses[1].ID, td.now.Unix())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = td.store.CompleteAssignment(ctx, st.ID, td.houses[0].ID, td.now.Unix())
		require.NoError(t, err)
		assert.False(t, ok, "second assignment must not overwrite the first")

		got, err := td.store.GetStudent(ctx, st.ID)
		require.NoError(t, err)
		require.NotNil(t, got.HouseID)
		assert.Equal(t, td.houses[1].ID, *got.HouseID)
		assert.True(t, got.AssignmentComplete)
	})

	t.Run("counts reflect assignment", func(t *testing.T) {
		counts, err := td.store.HouseCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, counts[0].Members)
		assert.Equal(t, 1, counts[1].Members)
	})

	t.Run("find assigned students by tuple", func(t *testing.T) {
		found, err := td.store.FindAssignedStudents(ctx, "ada obi", "200", "computer science")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, st.ID, found[0].ID)
	})
}

func TestScoreOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	football, chess := td.events[0], td.events[1]
	lannister, stark := td.houses[0], td.houses[1]

	entries := []models.ScoreEntry{
		{EventID: football.ID, HouseID: lannister.ID, Points: 50, CreatedAt: td.now.Add(-48 * time.Hour).Unix()},
		{EventID: football.ID, HouseID: stark.ID, Points: 30, CreatedAt: td.now.Add(-48 * time.Hour).Unix()},
		{EventID: chess.ID, HouseID: stark.ID, Points: 40, CreatedAt: td.now.Add(-1 * time.Hour).Unix()},
		{EventID: chess.ID, HouseID: lannister.ID, Points: 0, CreatedAt: td.now.Add(-1 * time.Hour).Unix()},
	}
	for i := range entries {
		require.NoError(t, td.store.InsertScore(ctx, &entries[i]))
		assert.NotZero(t, entries[i].ID)
	}

	t.Run("duplicate entry conflicts", func(t *testing.T) {
		dup := models.ScoreEntry{EventID: football.ID, HouseID: lannister.ID, Points: 10, CreatedAt: td.now.Unix()}
		err := td.store.InsertScore(ctx, &dup)
		assert.ErrorIs(t, err, models.ErrDuplicateEntry)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("house total", func(t *testing.T) {
		total, err := td.store.TotalPointsForHouse(ctx, stark.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, total)

		total, err = td.store.TotalPointsForHouse(ctx, td.houses[2].ID)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("house totals", func(t *testing.T) {
		totals, err := td.store.HouseTotals(ctx, td.now.Add(-24*time.Hour).Unix())
		require.NoError(t, err)
		require.Len(t, totals, 3)

		assert.Equal(t, store.HouseTotal{HouseID: lannister.ID, Points: 50, Wins: 1, EventsParticipated: 2, RecentPoints: 0}, totals[0])
		assert.Equal(t, store.HouseTotal{HouseID: stark.ID, Points: 70, Wins: 2, EventsParticipated: 2, RecentPoints: 40}, totals[1])
		assert.Equal(t, store.HouseTotal{HouseID: td.houses[2].ID}, totals[2])
	})

	t.Run("category totals", func(t *testing.T) {
		totals, err := td.store.CategoryTotals(ctx)
		require.NoError(t, err)
		assert.Contains(t, totals, store.CategoryTotal{Category: models.CategoryMinor, HouseID: stark.ID, Points: 40})
		assert.Contains(t, totals, store.CategoryTotal{Category: models.CategoryMajor, HouseID: lannister.ID, Points: 50})
	})

	t.Run("earliest score", func(t *testing.T) {
		first, ok, err := td.store.EarliestScoreTime(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, entries[0].CreatedAt, first)
	})

	t.Run("recent scores", func(t *testing.T) {
		recent, err := td.store.RecentScores(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "Chess", recent[0].EventTitle)
		assert.Equal(t, models.CategoryMinor, recent[0].Category)
	})

	t.Run("amend inside transaction", func(t *testing.T) {
		err := td.store.WithTx(ctx, func(tx store.Tx) error {
			score, err := tx.GetScore(ctx, football.ID, stark.ID)
			if err != nil {
				return err
			}
			if err := tx.UpdateScorePoints(ctx, score.ID, 35); err != nil {
				return err
			}
			return tx.InsertAmendment(ctx, &models.ScoreAmendment{
				ScoreID:        score.ID,
				PreviousPoints: score.Points,
				NewPoints:      35,
				Reason:         "recount",
				AmendedBy:      "ADMIN1",
				AmendedAt:      td.now.Unix(),
			})
		})
		require.NoError(t, err)

		got, err := td.store.GetScore(ctx, football.ID, stark.ID)
		require.NoError(t, err)
		assert.Equal(t, 35, got.Points)

		amendments, err := td.store.ListAmendments(ctx, got.ID)
		require.NoError(t, err)
		require.Len(t, amendments, 1)
		assert.Equal(t, 30, amendments[0].PreviousPoints)
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		err := td.store.WithTx(ctx, func(tx store.Tx) error {
			score, err := tx.GetScore(ctx, chess.ID, stark.ID)
			if err != nil {
				return err
			}
			if err := tx.UpdateScorePoints(ctx, score.ID, 999); err != nil {
				return err
			}
			return models.ErrConflict
		})
		assert.ErrorIs(t, err, models.ErrConflict)

		got, err := td.store.GetScore(ctx, chess.ID, stark.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, got.Points)
	})
}

func TestEmptyScoreboard(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	_, ok, err := td.store.EarliestScoreTime(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotificationOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	st := td.student(t, "CSC/2020/002")

	n := models.Notification{StudentID: st.ID, Message: "Stark scored 40", Type: models.NotificationScore, CreatedAt: td.now.Unix()}
	require.NoError(t, td.store.CreateNotification(ctx, &n))

	t.Run("mark read", func(t *testing.T) {
		unread, err := td.store.CountUnreadNotifications(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)

		require.NoError(t, td.store.MarkNotificationRead(ctx, n.ID, st.ID))
		list, err := td.store.ListNotifications(ctx, st.ID, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].IsRead)
	})

	t.Run("mark read of someone else's notification", func(t *testing.T) {
		err := td.store.MarkNotificationRead(ctx, n.ID, st.ID+1)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("push subscription upsert", func(t *testing.T) {
		sub := models.PushSubscription{StudentID: st.ID, Endpoint: "https://push.example.com/a", P256dh: "k1", Auth: "a1", CreatedAt: td.now.Unix()}
		require.NoError(t, td.store.SavePushSubscription(ctx, &sub))

		again := models.PushSubscription{StudentID: st.ID, Endpoint: sub.Endpoint, P256dh: "k2", Auth: "a2", CreatedAt: td.now.Unix()}
		require.NoError(t, td.store.SavePushSubscription(ctx, &again))
		assert.Equal(t, sub.ID, again.ID)

		subs, err := td.store.ListPushSubscriptions(ctx, st.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "k2", subs[0].P256dh)

		require.NoError(t, td.store.DeletePushSubscription(ctx, sub.ID))
		subs, err = td.store.ListPushSubscriptions(ctx, st.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestGalleryAndTreasure(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	st := td.student(t, "CSC/2020/003")

	t.Run("image moderation", func(t *testing.T) {
		img := models.Image{UploaderID: st.ID, FileURL: "https://cdn.example.com/1.jpg", CreatedAt: td.now.Unix()}
		require.NoError(t, td.store.CreateImage(ctx, &img))

		pending, err := td.store.ListPendingImages(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, td.store.ApproveImage(ctx, img.ID))
		pending, err = td.store.ListPendingImages(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		assert.ErrorIs(t, td.store.DeleteImage(ctx, 999), models.ErrNotFound)
	})

	t.Run("qr scans are unique", func(t *testing.T) {
		code := models.QRCode{Code: "LIB-01", Clue: "Among the books", Points: 15, LocationName: "Library", IsActive: true, CreatedAt: td.now.Unix()}
		require.NoError(t, td.store.CreateQRCode(ctx, &code))

		got, err := td.store.GetActiveQRCode(ctx, "LIB-01")
		require.NoError(t, err)
		require.NotNil(t, got)

		scan := models.QRScan{StudentID: st.ID, QRCodeID: code.ID, ScannedAt: td.now.Unix()}
		require.NoError(t, td.store.InsertQRScan(ctx, &scan))
		assert.ErrorIs(t, td.store.InsertQRScan(ctx, &scan), models.ErrAlreadyScanned)

		progress, err := td.store.TreasureProgress(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, progress.Scans)
		assert.Equal(t, 15, progress.Points)

		total, err := td.store.CountActiveQRCodes(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("unknown qr code", func(t *testing.T) {
		got, err := td.store.GetActiveQRCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestTranslateToSQLite(t *testing.T) {
	in := "id BIGSERIAL PRIMARY KEY,\n house_id BIGINT,\n ok BOOLEAN NOT NULL DEFAULT FALSE, on BOOLEAN DEFAULT TRUE"
	out := translateToSQLite(in)
	assert.Equal(t, "id INTEGER PRIMARY KEY AUTOINCREMENT,\n house_id INTEGER,\n ok BOOLEAN NOT NULL DEFAULT 0, on BOOLEAN DEFAULT 1", out)
}

func TestAccrualQueries(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()
	event, house := td.events[1].ID, td.houses[2].ID

	entry := models.ScoreEntry{EventID: event, HouseID: house, Points: 10, CreatedAt: td.now.Unix()}
	created, err := td.store.InsertScoreIfAbsent(ctx, &entry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, entry.ID)

	again := models.ScoreEntry{EventID: event, HouseID: house, Points: 99, CreatedAt: td.now.Unix()}
	created, err = td.store.InsertScoreIfAbsent(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, again.ID)

	updated, err := td.store.AddScorePoints(ctx, event, house, 15)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, updated.ID)
	assert.Equal(t, 25, updated.Points)

	locked, err := td.store.GetScoreForUpdate(ctx, event, house)
	require.NoError(t, err)
	assert.Equal(t, 25, locked.Points)

	_, err = td.store.AddScorePoints(ctx, td.events[0].ID, house, 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateEventRejectsDuplicateTitle(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()

	dup := models.Event{Title: "Football", Day: "2024-01-16", Time: "10:00", Category: models.CategoryMajor}
	assert.ErrorIs(t, td.store.CreateEvent(ctx, &dup), models.ErrDuplicateEvent)

	other := models.Event{Title: "Football", Day: "2024-01-16", Time: "10:00", Category: models.CategoryTrivia}
	require.NoError(t, td.store.CreateEvent(ctx, &other))
}
