package models

type ScoreEntry struct {
	ID        int64 `db:"id" json:"id"`
	EventID   int64 `db:"event_id" json:"event_id" validate:"required"`
	HouseID   int64 `db:"house_id" json:"house_id" validate:"required"`
	Points    int   `db:"points" json:"points"`
	CreatedAt int64 `db:"created_at" json:"created_at"`
}

// ScoreAmendment is the audit record written whenever an existing entry changes.
type ScoreAmendment struct {
	ID             int64  `db:"id" json:"id"`
	ScoreID        int64  `db:"score_id" json:"score_id"`
	PreviousPoints int    `db:"previous_points" json:"previous_points"`
	NewPoints      int    `db:"new_points" json:"new_points"`
	Reason         string `db:"reason" json:"reason"`
	AmendedBy      string `db:"amended_by" json:"amended_by"`
	AmendedAt      int64  `db:"amended_at" json:"amended_at"`
}

// RecentScore is a score joined with its event and house for activity feeds.
type RecentScore struct {
	ScoreEntry
	EventTitle string   `db:"event_title" json:"event_title"`
	Category   Category `db:"category" json:"category"`
	HouseName  string   `db:"house_name" json:"house_name"`
}

// EventScore is a score joined with its house for per-event listings.
type EventScore struct {
	ScoreEntry
	HouseName string `db:"house_name" json:"house_name"`
	HouseSlug string `db:"house_slug" json:"house_slug"`
}

func (s *ScoreEntry) Validate() error {
	return check(s)
}
