package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const houseColumns = `id, slug, name, motto, crest_url, color_primary, color_secondary, whatsapp_link`

func (q *Queries) CreateHouse(ctx context.Context, house *models.House) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO houses (slug, name, motto, crest_url, color_primary, color_secondary, whatsapp_link)
		VALUES (:slug, :name, :motto, :crest_url, :color_primary, :color_secondary, :whatsapp_link)
		RETURNING id
	`, house)
	if err != nil {
		return q.wrapUnique(err, "failed to create house", fmt.Errorf("house %q already exists: %w", house.Slug, models.ErrConflict))
	}
	house.ID = id
	return nil
}

// ListHouses returns houses in registration order.
func (q *Queries) ListHouses(ctx context.Context) ([]models.House, error) {
	var houses []models.House
	err := q.selectAll(ctx, &houses, `SELECT `+houseColumns+` FROM houses ORDER BY id ASC`)
	if err != nil {
		return nil, q.wrap(err, "failed to list houses")
	}
	return houses, nil
}

func (q *Queries) GetHouse(ctx context.Context, id int64) (*models.House, error) {
	var house models.House
	err := q.get(ctx, &house, `SELECT `+houseColumns+` FROM houses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get house")
	}
	return &house, nil
}

func (q *Queries) CountHouses(ctx context.Context) (int, error) {
	var count int
	if err := q.get(ctx, &count, `SELECT COUNT(*) FROM houses`); err != nil {
		return 0, q.wrap(err, "failed to count houses")
	}
	return count, nil
}

// UpdateHouseDisplay changes display metadata only; the slug and id never change.
func (q *Queries) UpdateHouseDisplay(ctx context.Context, house *models.House) error {
	n, err := q.exec(ctx, `
		UPDATE houses
		SET name = ?, motto = ?, crest_url = ?, color_primary = ?, color_secondary = ?, whatsapp_link = ?
		WHERE id = ?
	`, house.Name, house.Motto, house.CrestURL, house.ColorPrimary, house.ColorSecondary, house.WhatsAppLink, house.ID)
	if err != nil {
		return q.wrap(err, "failed to update house")
	}
	if n == 0 {
		return fmt.Errorf("house %d: %w", house.ID, models.ErrNotFound)
	}
	return nil
}

// HouseCounts returns the member count of every house in registration order.
func (q *Queries) HouseCounts(ctx context.Context) ([]models.HouseCount, error) {
	var counts []models.HouseCount
	err := q.selectAll(ctx, &counts, `
		SELECT
			h.id AS house_id,
			COUNT(s.id) AS members
		FROM houses h
		LEFT JOIN students s ON s.house_id = h.id
		GROUP BY h.id
		ORDER BY h.id ASC
	`)
	if err != nil {
		return nil, q.wrap(err, "failed to count house members")
	}
	return counts, nil
}
