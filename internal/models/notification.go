package models

type NotificationType string

const (
	NotificationMedia         NotificationType = "media"
	NotificationScore         NotificationType = "score"
	NotificationDailyReminder NotificationType = "daily_reminder"
	NotificationTreasureHunt  NotificationType = "treasure_hunt"
	NotificationGeneral       NotificationType = "general"
)

type Notification struct {
	ID        int64            `db:"id" json:"id"`
	StudentID int64            `db:"student_id" json:"student_id"`
	Message   string           `db:"message" json:"message" validate:"required"`
	Type      NotificationType `db:"type" json:"type" validate:"required,oneof=media score daily_reminder treasure_hunt general"`
	URL       string           `db:"url" json:"url"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	CreatedAt int64            `db:"created_at" json:"created_at"`
}

type PushSubscription struct {
	ID        int64  `db:"id" json:"id"`
	StudentID int64  `db:"student_id" json:"student_id"`
	Endpoint  string `db:"endpoint" json:"endpoint" validate:"required,url"`
	P256dh    string `db:"p256dh" json:"p256dh" validate:"required"`
	Auth      string `db:"auth" json:"auth" validate:"required"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

func (n *Notification) Validate() error {
	return check(n)
}

func (p *PushSubscription) Validate() error {
	return check(p)
}
