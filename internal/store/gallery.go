package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const imageColumns = `id, uploader_id, house_id, file_url, description, tags, approved, created_at`

func (q *Queries) CreateImage(ctx context.Context, image *models.Image) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO images (uploader_id, house_id, file_url, description, tags, approved, created_at)
		VALUES (:uploader_id, :house_id, :file_url, :description, :tags, :approved, :created_at)
		RETURNING id
	`, image)
	if err != nil {
		return q.wrap(err, "failed to create image")
	}
	image.ID = id
	return nil
}

func (q *Queries) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	var image models.Image
	err := q.get(ctx, &image, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, q.wrap(err, "failed to get image")
	}
	return &image, nil
}

// ListPendingImages returns unapproved uploads oldest first.
func (q *Queries) ListPendingImages(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := q.selectAll(ctx, &images, `
		SELECT `+imageColumns+` FROM images WHERE approved = ? ORDER BY created_at ASC, id ASC
	`, false)
	if err != nil {
		return nil, q.wrap(err, "failed to list pending images")
	}
	return images, nil
}

func (q *Queries) ApproveImage(ctx context.Context, id int64) error {
	n, err := q.exec(ctx, `UPDATE images SET approved = ? WHERE id = ?`, true, id)
	if err != nil {
		return q.wrap(err, "failed to approve image")
	}
	if n == 0 {
		return fmt.Errorf("image %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (q *Queries) DeleteImage(ctx context.Context, id int64) error {
	n, err := q.exec(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return q.wrap(err, "failed to delete image")
	}
	if n == 0 {
		return fmt.Errorf("image %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListApprovedImages returns published images newest first, with like
// counts and whether viewerID liked each one. houseID 0 lists every house.
func (q *Queries) ListApprovedImages(ctx context.Context, houseID, viewerID int64) ([]models.GalleryImage, error) {
	var images []models.GalleryImage
	err := q.selectAll(ctx, &images, `
		SELECT
			i.id, i.uploader_id, i.house_id, i.file_url, i.description, i.tags, i.approved, i.created_at,
			(SELECT COUNT(*) FROM image_likes l WHERE l.image_id = i.id) AS like_count,
			EXISTS (SELECT 1 FROM image_likes l WHERE l.image_id = i.id AND l.student_id = ?) AS liked
		FROM images i
		WHERE i.approved = ? AND (? = 0 OR i.house_id = ?)
		ORDER BY i.created_at DESC, i.id DESC
	`, viewerID, true, houseID, houseID)
	if err != nil {
		return nil, q.wrap(err, "failed to list approved images")
	}
	return images, nil
}

// AddImageLike reports false when studentID already liked the image.
func (q *Queries) AddImageLike(ctx context.Context, imageID, studentID, at int64) (bool, error) {
	n, err := q.exec(ctx, `
		INSERT INTO image_likes (image_id, student_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (image_id, student_id) DO NOTHING
	`, imageID, studentID, at)
	if err != nil {
		return false, q.wrap(err, "failed to like image")
	}
	return n > 0, nil
}

// RemoveImageLike reports false when there was no like to remove.
func (q *Queries) RemoveImageLike(ctx context.Context, imageID, studentID int64) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM image_likes WHERE image_id = ? AND student_id = ?`, imageID, studentID)
	if err != nil {
		return false, q.wrap(err, "failed to unlike image")
	}
	return n > 0, nil
}

func (q *Queries) CountImageLikes(ctx context.Context, imageID int64) (int, error) {
	var count int
	if err := q.get(ctx, &count, `SELECT COUNT(*) FROM image_likes WHERE image_id = ?`, imageID); err != nil {
		return 0, q.wrap(err, "failed to count image likes")
	}
	return count, nil
}
