package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/ledger"
	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/models"
)

const (
	DefaultPushTitle = "Sports Week"

	// pushWorkers bounds concurrent web push deliveries.
	pushWorkers = 8
)

type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListPushSubscriptions(ctx context.Context, studentID int64) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
	ListStudents(ctx context.Context, role models.Role) ([]models.Student, error)
	ListHouseMembers(ctx context.Context, houseID int64) ([]models.Student, error)
}

// Notifier decides who hears about what. Delivery failures are logged and
// counted; they never reach the operation that triggered them.
type Notifier struct {
	store Store
	hub   *Hub
	push  PushSender
	title string
	now   func() time.Time

	slots    chan struct{}
	inflight sync.WaitGroup
}

// NewNotifier wires delivery channels. push may be nil to disable web push.
func NewNotifier(s Store, hub *Hub, push PushSender, title string) *Notifier {
	if title == "" {
		title = DefaultPushTitle
	}
	return &Notifier{
		store: s,
		hub:   hub,
		push:  push,
		title: title,
		now:   time.Now,
		slots: make(chan struct{}, pushWorkers),
	}
}

// Wait blocks until every queued web push has been attempted.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

// Notify stores an inbox entry for studentID and pushes it over every
// live channel the student has. Web push runs in the background.
func (n *Notifier) Notify(ctx context.Context, studentID int64, kind models.NotificationType, message, url string) {
	entry := &models.Notification{
		StudentID: studentID,
		Message:   message,
		Type:      kind,
		URL:       url,
		CreatedAt: n.now().Unix(),
	}
	if err := n.store.CreateNotification(ctx, entry); err != nil {
		logger.Error.Printf("Failed to store notification for student %d: %v", studentID, err)
		metrics.NotificationDeliveriesTotal.WithLabelValues("inbox", "failed").Inc()
	} else {
		metrics.NotificationDeliveriesTotal.WithLabelValues("inbox", "ok").Inc()
	}

	if n.hub != nil {
		n.hub.SendToUser(studentID, message)
	}
	if n.push != nil {
		n.inflight.Add(1)
		go func() {
			defer n.inflight.Done()
			n.slots <- struct{}{}
			defer func() { <-n.slots }()
			n.sendPush(context.WithoutCancel(ctx), studentID, message, url)
		}()
	}
}

func (n *Notifier) sendPush(ctx context.Context, studentID int64, message, url string) {
	subs, err := n.store.ListPushSubscriptions(ctx, studentID)
	if err != nil {
		logger.Error.Printf("Failed to list push subscriptions for student %d: %v", studentID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := encodePush(n.title, message, url)
	if err != nil {
		logger.Error.Printf("Failed to encode push payload: %v", err)
		return
	}

	for _, sub := range subs {
		status, err := n.push.Send(ctx, sub, payload)
		switch {
		case err != nil:
			logger.Error.Printf("Web push to student %d failed: %v", studentID, err)
			metrics.NotificationDeliveriesTotal.WithLabelValues("push", "failed").Inc()
		case status == http.StatusGone || status == http.StatusNotFound:
			logger.Debug.Printf("Push subscription %d expired, removing", sub.ID)
			metrics.NotificationDeliveriesTotal.WithLabelValues("push", "expired").Inc()
			if err := n.store.DeletePushSubscription(ctx, sub.ID); err != nil {
				logger.Error.Printf("Failed to delete push subscription %d: %v", sub.ID, err)
			}
		case status >= 400:
			logger.Error.Printf("Web push to student %d rejected with status %d", studentID, status)
			metrics.NotificationDeliveriesTotal.WithLabelValues("push", "failed").Inc()
		default:
			metrics.NotificationDeliveriesTotal.WithLabelValues("push", "ok").Inc()
		}
	}
}

// Broadcast delivers an admin announcement to every student and returns
// how many were addressed.
func (n *Notifier) Broadcast(ctx context.Context, message, url string) (int, error) {
	if message == "" {
		return 0, models.NewValidationError("message", "is required")
	}
	students, err := n.store.ListStudents(ctx, models.RoleStudent)
	if err != nil {
		return 0, err
	}
	for _, st := range students {
		n.Notify(ctx, st.ID, models.NotificationGeneral, message, url)
	}
	logger.Info.Printf("Broadcast sent to %d students", len(students))
	return len(students), nil
}

func (n *Notifier) ImageApproved(ctx context.Context, image models.Image) {
	name := image.Description
	if name == "" {
		name = fmt.Sprintf("#%d", image.ID)
	}
	n.Notify(ctx, image.UploaderID, models.NotificationMedia,
		fmt.Sprintf("Your image '%s' has been approved!", name), image.FileURL)
}

func (n *Notifier) TreasureFound(ctx context.Context, studentID int64, code models.QRCode) {
	n.Notify(ctx, studentID, models.NotificationTreasureHunt,
		fmt.Sprintf("You found the treasure at %s! +%d points for your house.", code.LocationName, code.Points), "")
}

// ScoreRecorded refreshes leaderboard subscribers and tells the members
// of the scoring house.
func (n *Notifier) ScoreRecorded(ctx context.Context, w ledger.Write) {
	if n.hub != nil {
		if err := n.hub.PublishLeaderboard(ctx); err != nil {
			logger.Error.Printf("Failed to publish leaderboard: %v", err)
		}
	}

	if w.Delta == 0 || w.Kind == ledger.KindAccrue {
		return
	}

	members, err := n.store.ListHouseMembers(ctx, w.Entry.HouseID)
	if err != nil {
		logger.Error.Printf("Failed to list members of house %d: %v", w.Entry.HouseID, err)
		return
	}
	message := fmt.Sprintf("%s earned %d points in %s!", w.HouseName, w.Delta, w.EventTitle)
	if w.Kind == ledger.KindAmend {
		message = fmt.Sprintf("%s's score in %s was updated to %d points.", w.HouseName, w.EventTitle, w.Entry.Points)
	}
	for _, m := range members {
		n.Notify(ctx, m.ID, models.NotificationScore, message, "")
	}
}
