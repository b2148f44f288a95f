package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HouseAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housecup_house_assignments_total",
			Help: "Total number of students placed into a house",
		},
		[]string{"house"},
	)

	ScoresRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housecup_scores_recorded_total",
			Help: "Total number of score writes by kind",
		},
		[]string{"category", "kind"},
	)

	ScorePointsHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "housecup_score_points",
			Help:    "Distribution of awarded points",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
		[]string{"category"},
	)

	NotificationDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housecup_notification_deliveries_total",
			Help: "Notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	WebsocketSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "housecup_websocket_subscribers",
			Help: "Currently connected websocket subscribers",
		},
		[]string{"channel"},
	)

	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housecup_leaderboard_cache_total",
			Help: "Leaderboard cache lookups and writes by result",
		},
		[]string{"result"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
