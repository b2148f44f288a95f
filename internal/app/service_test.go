package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
	"github.com/shrimpsizemoose/housecup/internal/store/sqlite"
)

func newTestService(t *testing.T, enableAuth bool) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	config, err := ParseConfig([]byte(fmt.Sprintf(`
[server]
port = ":0"
enable_auth = %t

[auth]
redis_url = "redis://%s"

[competition]
assignment_seed = 42
`, enableAuth, mr.Addr())))
	require.NoError(t, err)

	st, err := sqlite.NewSQLiteStore(":memory:", "../../migrations")
	require.NoError(t, err)

	svc, err := New(config, st)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	n, err := svc.SeedHouses(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return svc, mr
}

func TestSeedHousesOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t, false)

	n, err := svc.SeedHouses(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	houses, err := svc.Store.ListHouses(context.Background())
	require.NoError(t, err)
	require.Len(t, houses, 5)
	assert.Equal(t, "lannister", houses[0].Slug)
	assert.Equal(t, "greyjoy", houses[4].Slug)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)

	first, err := svc.Register(ctx, models.Registration{Name: "Arya", Level: "100", Department: "CSC", Matric: " csc/001 "})
	require.NoError(t, err)
	assert.False(t, first.Existing)
	assert.Equal(t, "CSC/001", first.Student.Matric)
	require.NotNil(t, first.Student.HouseID)
	assert.Equal(t, first.House.ID, *first.Student.HouseID)
	assert.True(t, first.Student.AssignmentComplete)

	again, err := svc.Register(ctx, models.Registration{Name: "Someone Else", Matric: "CSC/001"})
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, first.House.ID, again.House.ID)
	assert.Equal(t, first.Student.ID, again.Student.ID)

	byDetails, err := svc.Register(ctx, models.Registration{Name: "Bran", Level: "200", Department: "Physics"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(byDetails.Student.Matric, "GEN_"))

	sameDetails, err := svc.Register(ctx, models.Registration{Name: "bran", Level: "200", Department: "PHYSICS"})
	require.NoError(t, err)
	assert.True(t, sameDetails.Existing)
	assert.Equal(t, byDetails.Student.ID, sameDetails.Student.ID)

	_, err = svc.Register(ctx, models.Registration{Name: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRegisterBalancesHouses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)

	for i := 0; i < 10; i++ {
		_, err := svc.Register(ctx, models.Registration{Name: fmt.Sprintf("Student %d", i), Matric: fmt.Sprintf("M%03d", i)})
		require.NoError(t, err)
	}

	counts, err := svc.Store.HouseCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 5)
	for _, c := range counts {
		assert.Equal(t, 2, c.Members, "house %d", c.HouseID)
	}
}

func TestFailedRegistrationLeavesNoStudent(t *testing.T) {
	ctx := context.Background()
	config, err := ParseConfig([]byte(`
[server]
port = ":0"
`))
	require.NoError(t, err)
	st, err := sqlite.NewSQLiteStore(":memory:", "../../migrations")
	require.NoError(t, err)
	svc, err := New(config, st)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	for i := 0; i < 3; i++ {
		_, err := svc.Register(ctx, models.Registration{Name: "Hodor", Level: "100", Department: "CSC"})
		assert.ErrorIs(t, err, models.ErrNoHouses)
	}
	_, err = svc.Register(ctx, models.Registration{Name: "Hodor", Matric: "CSC/404"})
	assert.ErrorIs(t, err, models.ErrNoHouses)

	students, err := svc.Store.ListStudents(ctx, models.RoleStudent)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestRegisterRejectsAdminMatric(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)

	_, err := svc.CreateAdmin(ctx, "adm1", "Maester", "longenough")
	require.NoError(t, err)

	_, err = svc.Register(ctx, models.Registration{Name: "Maester", Matric: "ADM1"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCreateAdminValidation(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, err := svc.CreateAdmin(context.Background(), "adm1", "Maester", "short")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLoginAndResolveWithSessions(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t, true)

	reg, err := svc.Register(ctx, models.Registration{Name: "Jon", Matric: "NW001"})
	require.NoError(t, err)
	houseID := reg.House.ID

	_, err = svc.Auth.Login(ctx, "nw001", houseID+1, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = svc.Auth.Login(ctx, "nobody", houseID, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	login, err := svc.Auth.Login(ctx, "nw001", houseID, "")
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
	assert.True(t, mr.Exists("session:"+login.Token))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	identity, err := svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{Kind: StudentIdentity, StudentID: reg.Student.ID, HouseID: houseID}, identity)
	assert.Equal(t, "1", mr.HGet("session:"+login.Token, "request_count"))

	_, err = svc.CreateAdmin(ctx, "boss", "Ned", "winteriscoming")
	require.NoError(t, err)
	_, err = svc.Auth.Login(ctx, "BOSS", 0, "summer")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	adminLogin, err := svc.Auth.Login(ctx, "BOSS", 0, "winteriscoming")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminLogin.Token)
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, AdminIdentity, identity.Kind)
	assert.Zero(t, identity.HouseID)

	require.NoError(t, svc.Auth.Logout(ctx, req))
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.False(t, identity.Authenticated())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer sk-hcup-unknown")
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, identity.Kind)

	mr.FastForward(svc.Config.SessionTTL() + time.Second)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, identity.Kind)
}

func TestResolveTrustsMatricHeaderWithoutAuth(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)

	reg, err := svc.Register(ctx, models.Registration{Name: "Sansa", Matric: "KL002"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	identity, err := svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, identity.Kind)

	req.Header.Set("X-Student-Matric", "kl002")
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, StudentIdentity, identity.Kind)
	assert.Equal(t, reg.Student.ID, identity.StudentID)

	req.Header.Set("X-Student-Matric", "ghost")
	identity, err = svc.Auth.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, identity.Kind)
}

func TestLeaderboardCacheInvalidatedByScores(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t, false)

	event := &models.Event{Title: "Football", Day: "2024-03-04", Time: "10:00", Category: models.CategoryMajor}
	require.NoError(t, svc.Store.CreateEvent(ctx, event))
	houses, err := svc.Store.ListHouses(ctx)
	require.NoError(t, err)

	standings, err := svc.Leaderboard.ComputeLeaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 5)
	assert.True(t, mr.Exists(svc.Config.Leaderboard.CacheKey))

	_, err = svc.Ledger.RecordScore(ctx, event.ID, houses[2].ID, 25)
	require.NoError(t, err)
	assert.False(t, mr.Exists(svc.Config.Leaderboard.CacheKey))

	standings, err = svc.Leaderboard.ComputeLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, houses[2].ID, standings[0].House.ID)
	assert.Equal(t, 25, standings[0].Points)

	detail, err := svc.HouseDetail(ctx, houses[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, detail.TotalPoints)

	_, err = svc.HouseDetail(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisLeaderboardCache(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t, false)
	cache := NewRedisLeaderboardCache(svc.Redis, "lb", time.Minute)

	_, ok := cache.GetLeaderboard(ctx)
	assert.False(t, ok)

	want := []scoring.Standing{{Rank: 1, House: models.House{ID: 1, Name: "Stark"}, Points: 10, Trend: scoring.TrendUp}}
	generation := cache.Generation(ctx)
	cache.SetLeaderboard(ctx, generation, want)
	got, ok := cache.GetLeaderboard(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)

	cache.Invalidate(ctx)
	_, ok = cache.GetLeaderboard(ctx)
	assert.False(t, ok)
	assert.Equal(t, generation+1, cache.Generation(ctx))

	cache.SetLeaderboard(ctx, generation, want)
	_, ok = cache.GetLeaderboard(ctx)
	assert.False(t, ok, "standings computed before an invalidation must not be cached")

	cache.SetLeaderboard(ctx, cache.Generation(ctx), want)
	_, ok = cache.GetLeaderboard(ctx)
	assert.True(t, ok)

	require.NoError(t, mr.Set("lb", "not json"))
	_, ok = cache.GetLeaderboard(ctx)
	assert.False(t, ok)
}
