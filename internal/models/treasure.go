package models

type QRCode struct {
	ID           int64  `db:"id" json:"id"`
	Code         string `db:"code" json:"code" validate:"required,max=100"`
	Clue         string `db:"clue" json:"clue" validate:"required"`
	Points       int    `db:"points" json:"points" validate:"gte=0"`
	LocationName string `db:"location_name" json:"location_name" validate:"required,max=200"`
	IsActive     bool   `db:"is_active" json:"is_active"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

type QRScan struct {
	StudentID int64 `db:"student_id" json:"student_id"`
	QRCodeID  int64 `db:"qr_code_id" json:"qr_code_id"`
	ScannedAt int64 `db:"scanned_at" json:"scanned_at"`
}

// TreasureProgress summarizes one student's hunt.
type TreasureProgress struct {
	Scans      int `db:"scans" json:"total_scans"`
	Points     int `db:"points" json:"total_points"`
	TotalCodes int `db:"-" json:"total_qr_codes"`
	Percentage int `db:"-" json:"progress_percentage"`
	Remaining  int `db:"-" json:"remaining_treasures"`
}

// TreasureHunter is one student's hunt totals.
type TreasureHunter struct {
	StudentID int64  `db:"student_id" json:"student_id"`
	Name      string `db:"name" json:"name"`
	HouseID   *int64 `db:"house_id" json:"house_id,omitempty"`
	Scans     int    `db:"scans" json:"total_scans"`
	Points    int    `db:"points" json:"total_points"`
}

func (q *QRCode) Validate() error {
	return check(q)
}
