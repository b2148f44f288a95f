package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const scoreColumns = `id, event_id, house_id, points, created_at`

// InsertScore relies on the (event_id, house_id) unique constraint to reject duplicates.
func (q *Queries) InsertScore(ctx context.Context, score *models.ScoreEntry) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO scores (event_id, house_id, points, created_at)
		VALUES (:event_id, :house_id, :points, :created_at)
		RETURNING id
	`, score)
	if err != nil {
		return q.wrapUnique(err, "failed to insert score", models.ErrDuplicateEntry)
	}
	score.ID = id
	return nil
}

func (q *Queries) GetScore(ctx context.Context, eventID, houseID int64) (*models.ScoreEntry, error) {
	var score models.ScoreEntry
	err := q.get(ctx, &score, `
		SELECT `+scoreColumns+` FROM scores WHERE event_id = ? AND house_id = ?
	`, eventID, houseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get score")
	}
	return &score, nil
}

func (q *Queries) GetScoreByID(ctx context.Context, id int64) (*models.ScoreEntry, error) {
	var score models.ScoreEntry
	err := q.get(ctx, &score, `SELECT `+scoreColumns+` FROM scores WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get score")
	}
	return &score, nil
}

// ListEventScores returns every house's entry for eventID, highest first.
func (q *Queries) ListEventScores(ctx context.Context, eventID int64) ([]models.EventScore, error) {
	var scores []models.EventScore
	err := q.selectAll(ctx, &scores, `
		SELECT
			s.id, s.event_id, s.house_id, s.points, s.created_at,
			h.name AS house_name,
			h.slug AS house_slug
		FROM scores s
		JOIN houses h ON h.id = s.house_id
		WHERE s.event_id = ?
		ORDER BY s.points DESC, h.id ASC
	`, eventID)
	if err != nil {
		return nil, q.wrap(err, "failed to list event scores")
	}
	return scores, nil
}

// GetScoreForUpdate is GetScore holding the row lock until the transaction ends.
func (q *Queries) GetScoreForUpdate(ctx context.Context, eventID, houseID int64) (*models.ScoreEntry, error) {
	var score models.ScoreEntry
	err := q.get(ctx, &score, `
		SELECT `+scoreColumns+` FROM scores WHERE event_id = ? AND house_id = ? FOR UPDATE
	`, eventID, houseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to lock score")
	}
	return &score, nil
}

// InsertScoreIfAbsent creates the entry unless (event_id, house_id) already
// has one, reporting whether it did. A concurrent insert of the same pair
// waits for the other transaction instead of failing.
func (q *Queries) InsertScoreIfAbsent(ctx context.Context, score *models.ScoreEntry) (bool, error) {
	named, args, err := sqlx.Named(`
		INSERT INTO scores (event_id, house_id, points, created_at)
		VALUES (:event_id, :house_id, :points, :created_at)
		ON CONFLICT (event_id, house_id) DO NOTHING
		RETURNING id
	`, score)
	if err != nil {
		return false, err
	}

	var id int64
	err = q.ext.QueryRowxContext(ctx, q.Converter(named), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, q.wrap(err, "failed to insert score")
	}
	score.ID = id
	return true, nil
}

// AddScorePoints increments the entry in a single statement and returns it
// with the resulting total.
func (q *Queries) AddScorePoints(ctx context.Context, eventID, houseID int64, delta int) (*models.ScoreEntry, error) {
	var score models.ScoreEntry
	err := q.get(ctx, &score, `
		UPDATE scores SET points = points + ?
		WHERE event_id = ? AND house_id = ?
		RETURNING `+scoreColumns, delta, eventID, houseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no score for event %d and house %d: %w", eventID, houseID, models.ErrNotFound)
	}
	if err != nil {
		return nil, q.wrap(err, "failed to add score points")
	}
	return &score, nil
}

func (q *Queries) UpdateScorePoints(ctx context.Context, id int64, points int) error {
	n, err := q.exec(ctx, `UPDATE scores SET points = ? WHERE id = ?`, points, id)
	if err != nil {
		return q.wrap(err, "failed to update score")
	}
	if n == 0 {
		return fmt.Errorf("score %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (q *Queries) InsertAmendment(ctx context.Context, amendment *models.ScoreAmendment) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO score_amendments (score_id, previous_points, new_points, reason, amended_by, amended_at)
		VALUES (:score_id, :previous_points, :new_points, :reason, :amended_by, :amended_at)
		RETURNING id
	`, amendment)
	if err != nil {
		return q.wrap(err, "failed to insert score amendment")
	}
	amendment.ID = id
	return nil
}

func (q *Queries) ListAmendments(ctx context.Context, scoreID int64) ([]models.ScoreAmendment, error) {
	var amendments []models.ScoreAmendment
	err := q.selectAll(ctx, &amendments, `
		SELECT id, score_id, previous_points, new_points, reason, amended_by, amended_at
		FROM score_amendments
		WHERE score_id = ?
		ORDER BY id ASC
	`, scoreID)
	if err != nil {
		return nil, q.wrap(err, "failed to list score amendments")
	}
	return amendments, nil
}

func (q *Queries) TotalPointsForHouse(ctx context.Context, houseID int64) (int, error) {
	var total int
	err := q.get(ctx, &total, `SELECT COALESCE(SUM(points), 0) FROM scores WHERE house_id = ?`, houseID)
	if err != nil {
		return 0, q.wrap(err, "failed to sum house points")
	}
	return total, nil
}

// HouseTotals aggregates every house in registration order; houses without
// scores appear with zeros. RecentPoints counts entries created at or after since.
func (q *Queries) HouseTotals(ctx context.Context, since int64) ([]HouseTotal, error) {
	var totals []HouseTotal
	err := q.selectAll(ctx, &totals, `
		SELECT
			h.id AS house_id,
			COALESCE(SUM(s.points), 0) AS points,
			COUNT(CASE WHEN s.points > 0 THEN 1 END) AS wins,
			COUNT(DISTINCT s.event_id) AS events_participated,
			COALESCE(SUM(CASE WHEN s.created_at >= ? THEN s.points ELSE 0 END), 0) AS recent_points
		FROM houses h
		LEFT JOIN scores s ON s.house_id = h.id
		GROUP BY h.id
		ORDER BY h.id ASC
	`, since)
	if err != nil {
		return nil, q.wrap(err, "failed to aggregate house totals")
	}
	return totals, nil
}

func (q *Queries) CategoryTotals(ctx context.Context) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := q.selectAll(ctx, &totals, `
		SELECT
			e.category AS category,
			s.house_id AS house_id,
			SUM(s.points) AS points
		FROM scores s
		JOIN events e ON e.id = s.event_id
		GROUP BY e.category, s.house_id
		ORDER BY e.category, s.house_id
	`)
	if err != nil {
		return nil, q.wrap(err, "failed to aggregate category totals")
	}
	return totals, nil
}

// EarliestScoreTime reports the creation time of the first score, if any.
func (q *Queries) EarliestScoreTime(ctx context.Context) (int64, bool, error) {
	var first sql.NullInt64
	if err := q.get(ctx, &first, `SELECT MIN(created_at) FROM scores`); err != nil {
		return 0, false, q.wrap(err, "failed to get earliest score")
	}
	return first.Int64, first.Valid, nil
}

func (q *Queries) RecentScores(ctx context.Context, limit int) ([]models.RecentScore, error) {
	var scores []models.RecentScore
	err := q.selectAll(ctx, &scores, `
		SELECT
			s.id, s.event_id, s.house_id, s.points, s.created_at,
			e.title AS event_title,
			e.category AS category,
			h.name AS house_name
		FROM scores s
		JOIN events e ON e.id = s.event_id
		JOIN houses h ON h.id = s.house_id
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, q.wrap(err, "failed to list recent scores")
	}
	return scores, nil
}
