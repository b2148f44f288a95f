package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const eventColumns = `id, title, description, day, time, category, venue`

func (q *Queries) CreateEvent(ctx context.Context, event *models.Event) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO events (title, description, day, time, category, venue)
		VALUES (:title, :description, :day, :time, :category, :venue)
		RETURNING id
	`, event)
	if err != nil {
		return q.wrapUnique(err, "failed to create event", models.ErrDuplicateEvent)
	}
	event.ID = id
	return nil
}

func (q *Queries) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return q.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
}

func (q *Queries) GetEventByTitle(ctx context.Context, title string, category models.Category) (*models.Event, error) {
	return q.getEvent(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE title = ? AND category = ?
		ORDER BY id ASC
		LIMIT 1
	`, title, category)
}

func (q *Queries) getEvent(ctx context.Context, query string, args ...interface{}) (*models.Event, error) {
	var event models.Event
	err := q.get(ctx, &event, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get event")
	}
	return &event, nil
}

// ListEvents returns the schedule ordered by day and time.
func (q *Queries) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := q.selectAll(ctx, &events, `SELECT `+eventColumns+` FROM events ORDER BY day, time, id`)
	if err != nil {
		return nil, q.wrap(err, "failed to list events")
	}
	return events, nil
}

func (q *Queries) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := q.get(ctx, &count, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, q.wrap(err, "failed to count events")
	}
	return count, nil
}
