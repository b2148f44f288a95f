package store

import "github.com/shrimpsizemoose/housecup/internal/models"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

// HouseTotal is the per-house aggregate over the scores table.
type HouseTotal struct {
	HouseID            int64 `db:"house_id"`
	Points             int   `db:"points"`
	Wins               int   `db:"wins"`
	EventsParticipated int   `db:"events_participated"`
	RecentPoints       int   `db:"recent_points"`
}

// CategoryTotal is a house's points restricted to one event category.
type CategoryTotal struct {
	Category models.Category `db:"category"`
	HouseID  int64           `db:"house_id"`
	Points   int             `db:"points"`
}
