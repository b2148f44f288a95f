package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/housecup/internal/ledger"
	"github.com/shrimpsizemoose/housecup/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockStore) ListPushSubscriptions(ctx context.Context, studentID int64) ([]models.PushSubscription, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PushSubscription), args.Error(1)
}

func (m *MockStore) DeletePushSubscription(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) ListStudents(ctx context.Context, role models.Role) ([]models.Student, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Student), args.Error(1)
}

func (m *MockStore) ListHouseMembers(ctx context.Context, houseID int64) ([]models.Student, error) {
	args := m.Called(ctx, houseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Student), args.Error(1)
}

type sentPush struct {
	endpoint string
	payload  pushPayload
}

type fakePush struct {
	status map[string]int
	err    error

	mu   sync.Mutex
	sent []sentPush
}

func (f *fakePush) Send(_ context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	var p pushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{endpoint: sub.Endpoint, payload: p})
	if f.err != nil {
		return 0, f.err
	}
	if s, ok := f.status[sub.Endpoint]; ok {
		return s, nil
	}
	return http.StatusCreated, nil
}

func TestNotifyDeliversEverywhere(t *testing.T) {
	m := new(MockStore)
	m.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.StudentID == 5 && n.Type == models.NotificationGeneral && n.Message == "Finals at 4pm"
	})).Return(nil)
	m.On("ListPushSubscriptions", mock.Anything, int64(5)).Return([]models.PushSubscription{
		{ID: 1, StudentID: 5, Endpoint: "https://push.example.com/live"},
		{ID: 2, StudentID: 5, Endpoint: "https://push.example.com/gone"},
	}, nil)
	m.On("DeletePushSubscription", mock.Anything, int64(2)).Return(nil)

	push := &fakePush{status: map[string]int{"https://push.example.com/gone": http.StatusGone}}
	hub := NewHub(&fakeSource{}, 4)
	sub := hub.SubscribeUser(5)

	n := NewNotifier(m, hub, push, "")
	n.Notify(context.Background(), 5, models.NotificationGeneral, "Finals at 4pm", "/events")
	n.Wait()

	assert.Equal(t, UserMessage{Message: "Finals at 4pm"}, <-sub.Messages())
	require.Len(t, push.sent, 2)
	assert.Equal(t, pushPayload{Title: DefaultPushTitle, Message: "Finals at 4pm", URL: "/events"}, push.sent[0].payload)
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "DeletePushSubscription", 1)
}

func TestNotifyFailuresAreSwallowed(t *testing.T) {
	m := new(MockStore)
	m.On("CreateNotification", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	m.On("ListPushSubscriptions", mock.Anything, int64(9)).Return([]models.PushSubscription{
		{ID: 3, StudentID: 9, Endpoint: "https://push.example.com/x"},
	}, nil)

	push := &fakePush{err: errors.New("connection reset")}
	n := NewNotifier(m, nil, push, "House Cup")

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), 9, models.NotificationScore, "msg", "")
		n.Wait()
	})
	m.AssertNotCalled(t, "DeletePushSubscription", mock.Anything, mock.Anything)
}

func TestBroadcast(t *testing.T) {
	m := new(MockStore)
	m.On("ListStudents", mock.Anything, models.RoleStudent).Return([]models.Student{{ID: 1}, {ID: 2}}, nil)
	m.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	n := NewNotifier(m, nil, nil, "")

	count, err := n.Broadcast(context.Background(), "Opening ceremony moved", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	m.AssertNumberOfCalls(t, "CreateNotification", 2)

	_, err = n.Broadcast(context.Background(), "", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

// blockingPush holds every delivery until release is closed.
type blockingPush struct {
	release chan struct{}
	mu      sync.Mutex
	sent    int
}

func (b *blockingPush) Send(context.Context, models.PushSubscription, []byte) (int, error) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent++
	return http.StatusCreated, nil
}

func TestBroadcastDoesNotWaitForPush(t *testing.T) {
	m := new(MockStore)
	students := make([]models.Student, 20)
	for i := range students {
		students[i] = models.Student{ID: int64(i + 1)}
	}
	m.On("ListStudents", mock.Anything, models.RoleStudent).Return(students, nil)
	m.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	m.On("ListPushSubscriptions", mock.Anything, mock.Anything).Return([]models.PushSubscription{{ID: 1, Endpoint: "https://push.example.com/a"}}, nil)

	push := &blockingPush{release: make(chan struct{})}
	n := NewNotifier(m, nil, push, "")

	count, err := n.Broadcast(context.Background(), "Closing ceremony", "")
	require.NoError(t, err)
	assert.Equal(t, 20, count)
	m.AssertNumberOfCalls(t, "CreateNotification", 20)

	close(push.release)
	n.Wait()
	assert.Equal(t, 20, push.sent)
}

func TestImageApproved(t *testing.T) {
	m := new(MockStore)
	m.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.StudentID == 4 && n.Type == models.NotificationMedia &&
			n.Message == "Your image 'Relay finish' has been approved!"
	})).Return(nil)

	n := NewNotifier(m, nil, nil, "")
	n.ImageApproved(context.Background(), models.Image{ID: 8, UploaderID: 4, Description: "Relay finish"})
	m.AssertExpectations(t)
}

func TestScoreRecordedNotifiesHouseAndLeaderboard(t *testing.T) {
	m := new(MockStore)
	m.On("ListHouseMembers", mock.Anything, int64(1)).Return([]models.Student{{ID: 10}, {ID: 11}}, nil)
	m.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Type == models.NotificationScore && n.Message == "House Stark earned 25 points in Relay!"
	})).Return(nil)

	hub := NewHub(&fakeSource{}, 4)
	lb, err := hub.SubscribeLeaderboard(context.Background())
	require.NoError(t, err)
	<-lb.Messages()

	n := NewNotifier(m, hub, nil, "")
	n.ScoreRecorded(context.Background(), ledger.Write{
		Entry:      models.ScoreEntry{HouseID: 1, Points: 25},
		Kind:       ledger.KindRecord,
		Delta:      25,
		EventTitle: "Relay",
		HouseName:  "House Stark",
	})

	assert.Equal(t, 2, points(t, <-lb.Messages()))
	m.AssertNumberOfCalls(t, "CreateNotification", 2)
}
