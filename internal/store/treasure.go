package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

func (q *Queries) CreateQRCode(ctx context.Context, code *models.QRCode) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO qr_codes (code, clue, points, location_name, is_active, created_at)
		VALUES (:code, :clue, :points, :location_name, :is_active, :created_at)
		RETURNING id
	`, code)
	if err != nil {
		return q.wrapUnique(err, "failed to create qr code", fmt.Errorf("qr code %q already exists: %w", code.Code, models.ErrConflict))
	}
	code.ID = id
	return nil
}

func (q *Queries) GetActiveQRCode(ctx context.Context, code string) (*models.QRCode, error) {
	var qr models.QRCode
	err := q.get(ctx, &qr, `
		SELECT id, code, clue, points, location_name, is_active, created_at
		FROM qr_codes
		WHERE code = ? AND is_active = ?
	`, code, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get qr code")
	}
	return &qr, nil
}

func (q *Queries) CountActiveQRCodes(ctx context.Context) (int, error) {
	var count int
	if err := q.get(ctx, &count, `SELECT COUNT(*) FROM qr_codes WHERE is_active = ?`, true); err != nil {
		return 0, q.wrap(err, "failed to count qr codes")
	}
	return count, nil
}

// InsertQRScan relies on the (student_id, qr_code_id) key to reject repeat scans.
func (q *Queries) InsertQRScan(ctx context.Context, scan *models.QRScan) error {
	_, err := q.exec(ctx, `
		INSERT INTO qr_scans (student_id, qr_code_id, scanned_at) VALUES (?, ?, ?)
	`, scan.StudentID, scan.QRCodeID, scan.ScannedAt)
	if err != nil {
		return q.wrapUnique(err, "failed to record qr scan", models.ErrAlreadyScanned)
	}
	return nil
}

func (q *Queries) TreasureProgress(ctx context.Context, studentID int64) (*models.TreasureProgress, error) {
	var progress models.TreasureProgress
	err := q.get(ctx, &progress, `
		SELECT
			COUNT(*) AS scans,
			COALESCE(SUM(c.points), 0) AS points
		FROM qr_scans s
		JOIN qr_codes c ON c.id = s.qr_code_id
		WHERE s.student_id = ?
	`, studentID)
	if err != nil {
		return nil, q.wrap(err, "failed to get treasure progress")
	}
	return &progress, nil
}

// TreasureHunters lists every student with at least one scan, best first.
func (q *Queries) TreasureHunters(ctx context.Context) ([]models.TreasureHunter, error) {
	var hunters []models.TreasureHunter
	err := q.selectAll(ctx, &hunters, `
		SELECT
			st.id AS student_id,
			st.name AS name,
			st.house_id AS house_id,
			COUNT(*) AS scans,
			COALESCE(SUM(c.points), 0) AS points
		FROM qr_scans s
		JOIN qr_codes c ON c.id = s.qr_code_id
		JOIN students st ON st.id = s.student_id
		GROUP BY st.id, st.name, st.house_id
		ORDER BY points DESC, scans DESC, st.id ASC
	`)
	if err != nil {
		return nil, q.wrap(err, "failed to list treasure hunters")
	}
	return hunters, nil
}
