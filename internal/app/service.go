package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/housecup/internal/assignment"
	"github.com/shrimpsizemoose/housecup/internal/gallery"
	"github.com/shrimpsizemoose/housecup/internal/ledger"
	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/notify"
	"github.com/shrimpsizemoose/housecup/internal/random"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
	"github.com/shrimpsizemoose/housecup/internal/store"
	"github.com/shrimpsizemoose/housecup/internal/treasure"
)

const minAdminPasswordLength = 8

type Service struct {
	Config *Config
	Store  store.Store
	Redis  *redis.Client
	Auth   *Auth

	Engine      *assignment.Engine
	Ledger      *ledger.Ledger
	Leaderboard *scoring.Aggregator
	Hub         *notify.Hub
	Notifier    *notify.Notifier
	Hunt        *treasure.Hunt
	Gallery     *gallery.Moderator

	now func() time.Time
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	service, err := New(config, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return service, nil
}

// New wires every component around an already opened store.
func New(config *Config, st store.Store) (*Service, error) {
	var client *redis.Client
	if config.Auth.RedisURL != "" {
		opt, err := redis.ParseURL(config.Auth.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client = redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	var tokens *TokenManager
	var cache scoring.Cache
	if client != nil {
		tokens = NewTokenManager(client, config.SessionTTL())
		cache = NewRedisLeaderboardCache(client, config.Leaderboard.CacheKey, config.CacheTTL())
	} else {
		cache = scoring.NewMemoryCache(config.CacheTTL())
	}

	auth, err := NewAuth(config, st, tokens)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	rng, err := random.NewSource(config.Competition.AssignmentSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to seed assignment: %w", err)
	}

	startsAt, err := config.StartsAt()
	if err != nil {
		return nil, err
	}

	aggregator := scoring.NewAggregator(st, startsAt, cache)
	hub := notify.NewHub(aggregator, config.Leaderboard.SubscriberBuffer)

	var push notify.PushSender
	if config.Notify.Push.Enabled() {
		push = notify.NewWebPush(config.Notify.Push)
	}
	notifier := notify.NewNotifier(st, hub, push, config.Notify.Push.Title)

	scores := ledger.New(st,
		ledger.WithNegativePoints(config.Competition.AllowNegativePoints),
		ledger.WithInvalidator(aggregator),
		ledger.WithObserver(notifier),
	)

	return &Service{
		Config:      config,
		Store:       st,
		Redis:       client,
		Auth:        auth,
		Engine:      assignment.NewEngine(st, rng),
		Ledger:      scores,
		Leaderboard: aggregator,
		Hub:         hub,
		Notifier:    notifier,
		Hunt:        treasure.NewHunt(st, scores, notifier),
		Gallery:     gallery.NewModerator(st, notifier),
		now:         time.Now,
	}, nil
}

// SeedHouses creates the default houses on an empty database and reports
// how many were added.
func (s *Service) SeedHouses(ctx context.Context) (int, error) {
	count, err := s.Store.CountHouses(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	houses := models.DefaultHouses()
	for i := range houses {
		if err := s.Store.CreateHouse(ctx, &houses[i]); err != nil {
			return i, fmt.Errorf("failed to seed house %s: %w", houses[i].Slug, err)
		}
	}
	logger.Info.Printf("Seeded %d houses", len(houses))
	return len(houses), nil
}

type Registered struct {
	Student  *models.Student `json:"student"`
	House    *models.House   `json:"house"`
	Existing bool            `json:"existing"`
}

// Register signs a student up and assigns a house. A student who already
// went through assignment gets their existing house back.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*Registered, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.Engine.FindExistingAssignment(ctx, reg.Name, reg.Level, reg.Department, reg.Matric)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		house, err := s.Engine.AssignHouse(ctx, existing)
		if err != nil {
			return nil, err
		}
		return &Registered{Student: existing, House: house, Existing: true}, nil
	}

	if reg.Matric != "" {
		pending, err := s.Store.GetStudentByMatric(ctx, reg.Matric)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			return s.resume(ctx, pending)
		}
	}

	matric := reg.Matric
	if matric == "" {
		matric = models.GenerateMatric()
	}
	student := &models.Student{
		Matric:       matric,
		Name:         reg.Name,
		Level:        reg.Level,
		Department:   reg.Department,
		Role:         models.RoleStudent,
		RegisteredAt: s.now().Unix(),
	}
	if err := student.Validate(); err != nil {
		return nil, err
	}

	house, err := s.Engine.EnrolStudent(ctx, student)
	if errors.Is(err, models.ErrDuplicateMatric) && reg.Matric != "" {
		// a concurrent registration with the same matric got there first
		pending, lookupErr := s.Store.GetStudentByMatric(ctx, reg.Matric)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if pending != nil {
			return s.resume(ctx, pending)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Registered{Student: student, House: house}, nil
}

// resume finishes registration for a student row that already exists.
func (s *Service) resume(ctx context.Context, student *models.Student) (*Registered, error) {
	if student.IsAdmin() {
		return nil, models.ErrDuplicateMatric
	}
	existing := student.AssignmentComplete
	house, err := s.Engine.AssignHouse(ctx, student)
	if err != nil {
		return nil, err
	}
	return &Registered{Student: student, House: house, Existing: existing}, nil
}

// CreateAdmin adds an admin account with a bcrypt password hash.
func (s *Service) CreateAdmin(ctx context.Context, matric, name, password string) (*models.Student, error) {
	if len(password) < minAdminPasswordLength {
		return nil, models.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minAdminPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Student{
		Matric:       models.NormalizeMatric(matric),
		Name:         strings.TrimSpace(name),
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
		RegisteredAt: s.now().Unix(),
	}
	if err := admin.Validate(); err != nil {
		return nil, err
	}
	if err := s.Store.CreateStudent(ctx, admin); err != nil {
		return nil, err
	}
	logger.Info.Printf("Created admin %s", admin.Matric)
	return admin, nil
}

type HouseDetail struct {
	models.House
	TotalPoints int `json:"total_points"`
	Members     int `json:"members"`
}

func (s *Service) HouseDetail(ctx context.Context, id int64) (*HouseDetail, error) {
	house, err := s.Store.GetHouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, fmt.Errorf("house %d: %w", id, models.ErrNotFound)
	}

	total, err := s.Ledger.TotalPointsForHouse(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.Store.ListHouseMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &HouseDetail{House: *house, TotalPoints: total, Members: len(members)}, nil
}

// HouseMembers lists the students of a house by name.
func (s *Service) HouseMembers(ctx context.Context, id int64) ([]models.Student, error) {
	house, err := s.Store.GetHouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, fmt.Errorf("house %d: %w", id, models.ErrNotFound)
	}
	members, err := s.Store.ListHouseMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.Student{}
	}
	return members, nil
}

// HouseUpdate carries the display fields an admin may change. Nil fields
// are left alone.
type HouseUpdate struct {
	Name           *string `json:"name"`
	Motto          *string `json:"motto"`
	CrestURL       *string `json:"crest_url"`
	ColorPrimary   *string `json:"color_primary"`
	ColorSecondary *string `json:"color_secondary"`
	WhatsAppLink   *string `json:"whatsapp_link"`
}

// UpdateHouse changes display metadata and refreshes leaderboard viewers,
// who see house names and crests.
func (s *Service) UpdateHouse(ctx context.Context, id int64, update HouseUpdate) (*models.House, error) {
	house, err := s.Store.GetHouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, fmt.Errorf("house %d: %w", id, models.ErrNotFound)
	}

	for field, value := range map[*string]*string{
		&house.Name:           update.Name,
		&house.Motto:          update.Motto,
		&house.CrestURL:       update.CrestURL,
		&house.ColorPrimary:   update.ColorPrimary,
		&house.ColorSecondary: update.ColorSecondary,
		&house.WhatsAppLink:   update.WhatsAppLink,
	} {
		if value != nil {
			*field = strings.TrimSpace(*value)
		}
	}
	if err := house.Validate(); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateHouseDisplay(ctx, house); err != nil {
		return nil, err
	}
	logger.Info.Printf("House %s display updated", house.Slug)

	s.Leaderboard.Invalidate(ctx)
	if err := s.Hub.PublishLeaderboard(ctx); err != nil {
		logger.Error.Printf("Failed to publish leaderboard: %v", err)
	}
	return house, nil
}

type EventScore struct {
	models.EventScore
	Percentage int `json:"percentage"`
}

type EventDetail struct {
	Event         models.Event `json:"event"`
	Scores        []EventScore `json:"scores"`
	TotalPoints   int          `json:"total_points"`
	MaxPoints     int          `json:"max_points"`
	AveragePoints float64      `json:"average_points"`
	Completed     bool         `json:"is_completed"`
}

// EventDetail returns an event with its scores, each scaled against the
// best score of the event.
func (s *Service) EventDetail(ctx context.Context, id int64) (*EventDetail, error) {
	event, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	scores, err := s.Store.ListEventScores(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &EventDetail{Event: *event, Scores: make([]EventScore, 0, len(scores))}
	for i, score := range scores {
		detail.TotalPoints += score.Points
		if i == 0 || score.Points > detail.MaxPoints {
			detail.MaxPoints = score.Points
		}
	}
	for _, score := range scores {
		percentage := 0
		if detail.MaxPoints > 0 {
			percentage = int(math.Round(float64(score.Points) / float64(detail.MaxPoints) * 100))
		}
		detail.Scores = append(detail.Scores, EventScore{EventScore: score, Percentage: percentage})
	}
	if len(scores) > 0 {
		detail.AveragePoints = math.Round(float64(detail.TotalPoints)/float64(len(scores))*10) / 10
	}
	if starts, err := time.ParseInLocation("2006-01-02 15:04", event.Day+" "+event.Time, time.Local); err == nil {
		detail.Completed = s.now().After(starts)
	}
	return detail, nil
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) Close() error {
	var errs []error

	if s.Notifier != nil {
		s.Notifier.Wait()
	}

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
