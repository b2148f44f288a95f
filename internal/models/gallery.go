package models

type Image struct {
	ID          int64  `db:"id" json:"id"`
	UploaderID  int64  `db:"uploader_id" json:"uploader_id"`
	HouseID     *int64 `db:"house_id" json:"house_id,omitempty"`
	FileURL     string `db:"file_url" json:"file_url" validate:"required,url"`
	Description string `db:"description" json:"description"`
	Tags        string `db:"tags" json:"tags" validate:"max=200"`
	Approved    bool   `db:"approved" json:"approved"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// GalleryImage is an approved image as a given viewer sees it.
type GalleryImage struct {
	Image
	LikeCount int  `db:"like_count" json:"like_count"`
	Liked     bool `db:"liked" json:"is_liked"`
}

func (i *Image) Validate() error {
	return check(i)
}
