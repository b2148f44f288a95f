package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

type HouseStore interface {
	CreateHouse(ctx context.Context, house *models.House) error
	ListHouses(ctx context.Context) ([]models.House, error)
	GetHouse(ctx context.Context, id int64) (*models.House, error)
	CountHouses(ctx context.Context) (int, error)
	UpdateHouseDisplay(ctx context.Context, house *models.House) error
	HouseCounts(ctx context.Context) ([]models.HouseCount, error)
}

type StudentStore interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	GetStudentByMatric(ctx context.Context, matric string) (*models.Student, error)
	FindAssignedStudents(ctx context.Context, name, level, department string) ([]models.Student, error)
	ListStudents(ctx context.Context, role models.Role) ([]models.Student, error)
	ListHouseMembers(ctx context.Context, houseID int64) ([]models.Student, error)
	CompleteAssignment(ctx context.Context, studentID, houseID, at int64) (bool, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetEventByTitle(ctx context.Context, title string, category models.Category) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	CountEvents(ctx context.Context) (int, error)
}

type ScoreStore interface {
	InsertScore(ctx context.Context, score *models.ScoreEntry) error
	GetScore(ctx context.Context, eventID, houseID int64) (*models.ScoreEntry, error)
	GetScoreByID(ctx context.Context, id int64) (*models.ScoreEntry, error)
	ListEventScores(ctx context.Context, eventID int64) ([]models.EventScore, error)
	UpdateScorePoints(ctx context.Context, id int64, points int) error
	InsertAmendment(ctx context.Context, amendment *models.ScoreAmendment) error
	ListAmendments(ctx context.Context, scoreID int64) ([]models.ScoreAmendment, error)
	TotalPointsForHouse(ctx context.Context, houseID int64) (int, error)
	HouseTotals(ctx context.Context, since int64) ([]HouseTotal, error)
	CategoryTotals(ctx context.Context) ([]CategoryTotal, error)
	EarliestScoreTime(ctx context.Context) (int64, bool, error)
	RecentScores(ctx context.Context, limit int) ([]models.RecentScore, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, studentID int64, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, studentID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id, studentID int64) error
	SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error
	ListPushSubscriptions(ctx context.Context, studentID int64) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
}

type GalleryStore interface {
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

type TreasureStore interface {
	CreateQRCode(ctx context.Context, code *models.QRCode) error
	GetActiveQRCode(ctx context.Context, code string) (*models.QRCode, error)
	CountActiveQRCodes(ctx context.Context) (int, error)
	InsertQRScan(ctx context.Context, scan *models.QRScan) error
	TreasureProgress(ctx context.Context, studentID int64) (*models.TreasureProgress, error)
	TreasureHunters(ctx context.Context) ([]models.TreasureHunter, error)
}

// Tx is the subset of queries available inside a transaction.
type Tx interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	HouseCounts(ctx context.Context) ([]models.HouseCount, error)
	CompleteAssignment(ctx context.Context, studentID, houseID, at int64) (bool, error)

	GetHouse(ctx context.Context, id int64) (*models.House, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetEventByTitle(ctx context.Context, title string, category models.Category) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error

	GetScore(ctx context.Context, eventID, houseID int64) (*models.ScoreEntry, error)
	GetScoreForUpdate(ctx context.Context, eventID, houseID int64) (*models.ScoreEntry, error)
	InsertScore(ctx context.Context, score *models.ScoreEntry) error
	InsertScoreIfAbsent(ctx context.Context, score *models.ScoreEntry) (bool, error)
	AddScorePoints(ctx context.Context, eventID, houseID int64, delta int) (*models.ScoreEntry, error)
	UpdateScorePoints(ctx context.Context, id int64, points int) error
	InsertAmendment(ctx context.Context, amendment *models.ScoreAmendment) error

	GetActiveQRCode(ctx context.Context, code string) (*models.QRCode, error)
	InsertQRScan(ctx context.Context, scan *models.QRScan) error
}

type Store interface {
	HouseStore
	StudentStore
	EventStore
	ScoreStore
	NotificationStore
	GalleryStore
	TreasureStore

	Close() error
	ApplyMigrations(dir string) error
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// ErrorClassifier maps driver errors onto the domain taxonomy.
type ErrorClassifier interface {
	IsUniqueViolation(err error) bool
	IsTransient(err error) bool
}

// Queries holds every query against either the pool or an open transaction.
type Queries struct {
	ext        sqlx.ExtContext
	Converter  func(string) string
	Classifier ErrorClassifier
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	Queries
	DB *sqlx.DB
}

func NewBaseStore(db *sqlx.DB, converter func(string) string, classifier ErrorClassifier) BaseStore {
	return BaseStore{
		Queries: Queries{ext: db, Converter: converter, Classifier: classifier},
		DB:      db,
	}
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

// WithTx runs fn inside a transaction, committing only when fn returns nil.
func (s *BaseStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return s.wrap(err, "failed to begin transaction")
	}

	q := &Queries{ext: tx, Converter: s.Converter, Classifier: s.Classifier}
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error.Printf("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.wrap(err, "failed to commit transaction")
	}
	return nil
}

// wrap annotates err, tagging it transient when the dialect says a retry may succeed.
func (q *Queries) wrap(err error, action string) error {
	if q.Classifier != nil && q.Classifier.IsTransient(err) {
		return fmt.Errorf("%s: %w (%w)", action, models.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// wrapUnique is wrap with unique constraint violations mapped onto conflict.
func (q *Queries) wrapUnique(err error, action string, conflict error) error {
	if q.Classifier != nil && q.Classifier.IsUniqueViolation(err) {
		return conflict
	}
	return q.wrap(err, action)
}

func (q *Queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.Converter(query), args...)
}

func (q *Queries) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.Converter(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.Converter(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertReturningID runs a named INSERT ... RETURNING id.
func (q *Queries) insertReturningID(ctx context.Context, query string, arg interface{}) (int64, error) {
	named, args, err := sqlx.Named(query, arg)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := q.ext.QueryRowxContext(ctx, q.Converter(named), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
