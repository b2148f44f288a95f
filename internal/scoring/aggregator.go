// Package scoring derives the leaderboard from the score ledger.
package scoring

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
)

const trendWindow = 24 * time.Hour

type Store interface {
	ListHouses(ctx context.Context) ([]models.House, error)
	CountEvents(ctx context.Context) (int, error)
	HouseTotals(ctx context.Context, since int64) ([]store.HouseTotal, error)
	CategoryTotals(ctx context.Context) ([]store.CategoryTotal, error)
	EarliestScoreTime(ctx context.Context) (int64, bool, error)
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendStable Trend = "stable"
)

// Standing is one house's row on the leaderboard.
type Standing struct {
	Rank               int          `json:"rank"`
	House              models.House `json:"house"`
	Points             int          `json:"total_points"`
	Wins               int          `json:"event_wins"`
	EventsParticipated int          `json:"events_participated"`
	ParticipationRate  int          `json:"participation_rate"`
	PercentageOfLeader int          `json:"points_percentage"`
	PointsPerDay       int          `json:"points_per_day"`
	RecentPoints       int          `json:"recent_points"`
	Trend              Trend        `json:"recent_trend"`
}

type HousePoints struct {
	House  models.House `json:"house"`
	Points int          `json:"points"`
}

// CategoryBreakdown holds the best three houses of one event category.
type CategoryBreakdown struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Top      []HousePoints   `json:"top_houses"`
}

// Cache memoizes the leaderboard between score writes. Every Invalidate
// starts a new generation, and SetLeaderboard must drop standings computed
// under an older one.
type Cache interface {
	GetLeaderboard(ctx context.Context) ([]Standing, bool)
	Generation(ctx context.Context) uint64
	SetLeaderboard(ctx context.Context, generation uint64, standings []Standing)
	Invalidate(ctx context.Context)
}

type Aggregator struct {
	store    Store
	cache    Cache
	startsAt time.Time
	now      func() time.Time
}

// NewAggregator builds an aggregator. startsAt anchors the points-per-day
// average; when zero the first recorded score is used. cache may be nil.
func NewAggregator(s Store, startsAt time.Time, cache Cache) *Aggregator {
	return &Aggregator{
		store:    s,
		cache:    cache,
		startsAt: startsAt,
		now:      time.Now,
	}
}

func (a *Aggregator) Invalidate(ctx context.Context) {
	if a.cache != nil {
		a.cache.Invalidate(ctx)
	}
}

// ComputeLeaderboard ranks every house by total points. Equal totals keep
// registration order.
func (a *Aggregator) ComputeLeaderboard(ctx context.Context) ([]Standing, error) {
	return a.leaderboard(ctx, true)
}

// RefreshLeaderboard is ComputeLeaderboard without reading the memoized
// copy. Publishers call it right after a write.
func (a *Aggregator) RefreshLeaderboard(ctx context.Context) ([]Standing, error) {
	return a.leaderboard(ctx, false)
}

func (a *Aggregator) leaderboard(ctx context.Context, cached bool) ([]Standing, error) {
	var generation uint64
	if a.cache != nil {
		generation = a.cache.Generation(ctx)
		if cached {
			if standings, ok := a.cache.GetLeaderboard(ctx); ok {
				return standings, nil
			}
		}
	}

	houses, err := a.store.ListHouses(ctx)
	if err != nil {
		return nil, err
	}
	standings := make([]Standing, 0, len(houses))
	if len(houses) == 0 {
		return standings, nil
	}

	now := a.now()
	totals, err := a.store.HouseTotals(ctx, now.Add(-trendWindow).Unix())
	if err != nil {
		return nil, err
	}
	byHouse := make(map[int64]store.HouseTotal, len(totals))
	for _, t := range totals {
		byHouse[t.HouseID] = t
	}

	events, err := a.store.CountEvents(ctx)
	if err != nil {
		return nil, err
	}
	days, err := a.daysElapsed(ctx, now)
	if err != nil {
		return nil, err
	}

	leader := 0
	for _, h := range houses {
		t := byHouse[h.ID]
		leader = max(leader, t.Points)
		standings = append(standings, Standing{
			House:              h,
			Points:             t.Points,
			Wins:               t.Wins,
			EventsParticipated: t.EventsParticipated,
			ParticipationRate:  percent(t.EventsParticipated, events),
			PointsPerDay:       int(math.Round(float64(t.Points) / float64(days))),
			RecentPoints:       t.RecentPoints,
			Trend:              trend(t.Points, t.RecentPoints, days),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Points > standings[j].Points
	})
	for i := range standings {
		standings[i].Rank = i + 1
		standings[i].PercentageOfLeader = percent(standings[i].Points, leader)
	}

	if a.cache != nil {
		a.cache.SetLeaderboard(ctx, generation, standings)
	}
	return standings, nil
}

// ComputeEventTypeBreakdown returns, for every category in display order,
// the top three houses by points earned in that category.
func (a *Aggregator) ComputeEventTypeBreakdown(ctx context.Context) ([]CategoryBreakdown, error) {
	houses, err := a.store.ListHouses(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := a.store.CategoryTotals(ctx)
	if err != nil {
		return nil, err
	}

	points := make(map[models.Category]map[int64]int)
	for _, t := range totals {
		if points[t.Category] == nil {
			points[t.Category] = make(map[int64]int)
		}
		points[t.Category][t.HouseID] = t.Points
	}

	categories := models.Categories()
	breakdown := make([]CategoryBreakdown, 0, len(categories))
	for _, c := range categories {
		ranked := make([]HousePoints, 0, len(houses))
		for _, h := range houses {
			ranked = append(ranked, HousePoints{House: h, Points: points[c][h.ID]})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Points > ranked[j].Points
		})
		if len(ranked) > 3 {
			ranked = ranked[:3]
		}
		breakdown = append(breakdown, CategoryBreakdown{Category: c, Label: c.Label(), Top: ranked})
	}
	return breakdown, nil
}

func (a *Aggregator) daysElapsed(ctx context.Context, now time.Time) (int, error) {
	start := a.startsAt
	if start.IsZero() {
		first, ok, err := a.store.EarliestScoreTime(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 1, nil
		}
		start = time.Unix(first, 0)
	}
	return max(1, int(now.Sub(start)/(24*time.Hour))), nil
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func trend(total, recent, days int) Trend {
	if total == 0 {
		return TrendStable
	}
	if float64(recent) > float64(total)/float64(days) {
		return TrendUp
	}
	return TrendStable
}
