// Package gallery holds student photo uploads until an admin approves them.
package gallery

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

type Store interface {
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	CreateImage(ctx context.Context, image *models.Image) error
	GetImage(ctx context.Context, id int64) (*models.Image, error)
	ListPendingImages(ctx context.Context) ([]models.Image, error)
	ApproveImage(ctx context.Context, id int64) error
	DeleteImage(ctx context.Context, id int64) error
	ListApprovedImages(ctx context.Context, houseID, viewerID int64) ([]models.GalleryImage, error)
	AddImageLike(ctx context.Context, imageID, studentID, at int64) (bool, error)
	RemoveImageLike(ctx context.Context, imageID, studentID int64) (bool, error)
	CountImageLikes(ctx context.Context, imageID int64) (int, error)
}

type Notifier interface {
	ImageApproved(ctx context.Context, image models.Image)
}

type Moderator struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewModerator wires moderation. notifier may be nil.
func NewModerator(s Store, notifier Notifier) *Moderator {
	return &Moderator{store: s, notifier: notifier, now: time.Now}
}

// Submit stores an unapproved upload tagged with the uploader's house.
func (m *Moderator) Submit(ctx context.Context, uploaderID int64, image *models.Image) error {
	uploader, err := m.store.GetStudent(ctx, uploaderID)
	if err != nil {
		return err
	}
	if uploader == nil {
		return fmt.Errorf("student %d: %w", uploaderID, models.ErrNotFound)
	}

	image.UploaderID = uploader.ID
	image.HouseID = uploader.HouseID
	image.Approved = false
	image.CreatedAt = m.now().Unix()
	if err := image.Validate(); err != nil {
		return err
	}
	return m.store.CreateImage(ctx, image)
}

func (m *Moderator) Pending(ctx context.Context) ([]models.Image, error) {
	return m.store.ListPendingImages(ctx)
}

// Approve publishes the image and tells the uploader.
func (m *Moderator) Approve(ctx context.Context, id int64) (*models.Image, error) {
	image, err := m.store.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, fmt.Errorf("image %d: %w", id, models.ErrNotFound)
	}
	if image.Approved {
		return image, nil
	}

	if err := m.store.ApproveImage(ctx, id); err != nil {
		return nil, err
	}
	image.Approved = true
	logger.Info.Printf("Image %d approved", id)

	if m.notifier != nil {
		m.notifier.ImageApproved(ctx, *image)
	}
	return image, nil
}

// Reject deletes the upload.
func (m *Moderator) Reject(ctx context.Context, id int64) error {
	if err := m.store.DeleteImage(ctx, id); err != nil {
		return err
	}
	logger.Info.Printf("Image %d rejected", id)
	return nil
}

// Approved lists published images for viewerID, optionally narrowed to
// one house (houseID 0 means all).
func (m *Moderator) Approved(ctx context.Context, houseID, viewerID int64) ([]models.GalleryImage, error) {
	images, err := m.store.ListApprovedImages(ctx, houseID, viewerID)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []models.GalleryImage{}
	}
	return images, nil
}

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// ToggleLike likes an approved image for studentID, or takes the like back
// when one exists.
func (m *Moderator) ToggleLike(ctx context.Context, imageID, studentID int64) (*LikeResult, error) {
	image, err := m.store.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if image == nil || !image.Approved {
		return nil, fmt.Errorf("image %d: %w", imageID, models.ErrNotFound)
	}

	removed, err := m.store.RemoveImageLike(ctx, imageID, studentID)
	if err != nil {
		return nil, err
	}
	liked := false
	if !removed {
		if _, err := m.store.AddImageLike(ctx, imageID, studentID, m.now().Unix()); err != nil {
			return nil, err
		}
		liked = true
	}

	count, err := m.store.CountImageLikes(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}
