// Package assignment places newly registered students into the least
// populated house.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
)

const maxAttempts = 3

// Store is what the engine needs from persistence.
type Store interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
	GetStudentByMatric(ctx context.Context, matric string) (*models.Student, error)
	FindAssignedStudents(ctx context.Context, name, level, department string) ([]models.Student, error)
}

type Engine struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine builds an engine drawing tie-breaks from rng. Pass a seeded
// generator to make assignments reproducible.
func NewEngine(s Store, rng *rand.Rand) *Engine {
	return &Engine{
		store: s,
		now:   time.Now,
		rng:   rng,
	}
}

type outcome struct {
	student *models.Student
	house   *models.House
	fresh   bool
}

// AssignHouse places student into one of the houses tied for the fewest
// members. A student whose assignment is already complete keeps the house
// they have. The caller's student is updated in place.
func (e *Engine) AssignHouse(ctx context.Context, student *models.Student) (*models.House, error) {
	if student == nil {
		return nil, models.NewValidationError("student", "is required")
	}

	res, err := e.retry(ctx, student.ID, func() (outcome, error) {
		var res outcome
		err := e.store.WithTx(ctx, func(tx store.Tx) error {
			current, err := tx.GetStudent(ctx, student.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return fmt.Errorf("student %d: %w", student.ID, models.ErrNotFound)
			}
			res, err = e.assignInTx(ctx, tx, current)
			return err
		})
		return res, err
	})
	if err != nil {
		return nil, err
	}
	return e.finish(student, res), nil
}

// EnrolStudent inserts a new student and assigns its house in the same
// transaction. When assignment fails the student is not stored.
func (e *Engine) EnrolStudent(ctx context.Context, student *models.Student) (*models.House, error) {
	if student == nil {
		return nil, models.NewValidationError("student", "is required")
	}

	res, err := e.retry(ctx, 0, func() (outcome, error) {
		var res outcome
		err := e.store.WithTx(ctx, func(tx store.Tx) error {
			fresh := *student
			fresh.ID = 0
			if err := tx.CreateStudent(ctx, &fresh); err != nil {
				return err
			}
			var err error
			res, err = e.assignInTx(ctx, tx, &fresh)
			return err
		})
		return res, err
	})
	if err != nil {
		return nil, err
	}
	return e.finish(student, res), nil
}

// retry reruns one assignment transaction while it fails transiently.
func (e *Engine) retry(ctx context.Context, studentID int64, op func() (outcome, error)) (outcome, error) {
	return backoff.Retry(ctx, func() (outcome, error) {
		res, err := op()
		if err != nil && !errors.Is(err, models.ErrTransient) {
			return res, backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug.Printf("Retrying assignment of student %d: %v", studentID, err)
		}
		return res, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxAttempts))
}

func (e *Engine) finish(student *models.Student, res outcome) *models.House {
	*student = *res.student
	if res.fresh {
		metrics.HouseAssignmentsTotal.WithLabelValues(res.house.Slug).Inc()
		logger.Info.Printf("Assigned student %s to house %s", student.Matric, res.house.Slug)
	}
	return res.house
}

func (e *Engine) assignInTx(ctx context.Context, tx store.Tx, current *models.Student) (outcome, error) {
	var res outcome
	if current.IsAdmin() {
		return res, models.NewValidationError("role", "admin users are not assigned to a house")
	}
	if current.AssignmentComplete {
		err := e.existing(ctx, tx, current, &res)
		return res, err
	}

	counts, err := tx.HouseCounts(ctx)
	if err != nil {
		return res, err
	}
	if len(counts) == 0 {
		return res, models.ErrNoHouses
	}

	houseID := e.pick(counts)
	at := e.now().Unix()
	ok, err := tx.CompleteAssignment(ctx, current.ID, houseID, at)
	if err != nil {
		return res, err
	}
	if !ok {
		// a concurrent request finished first, report its choice
		winner, err := tx.GetStudent(ctx, current.ID)
		if err != nil {
			return res, err
		}
		if winner == nil {
			return res, fmt.Errorf("student %d: %w", current.ID, models.ErrNotFound)
		}
		err = e.existing(ctx, tx, winner, &res)
		return res, err
	}

	current.HouseID = &houseID
	current.AssignmentComplete = true
	current.AssignedAt = &at

	house, err := tx.GetHouse(ctx, houseID)
	if err != nil {
		return res, err
	}
	return outcome{student: current, house: house, fresh: true}, nil
}

func (e *Engine) existing(ctx context.Context, tx store.Tx, student *models.Student, res *outcome) error {
	if student.HouseID == nil {
		return models.NewValidationError("house", "assignment is complete but no house is set")
	}
	house, err := tx.GetHouse(ctx, *student.HouseID)
	if err != nil {
		return err
	}
	if house == nil {
		return fmt.Errorf("house %d: %w", *student.HouseID, models.ErrNotFound)
	}
	*res = outcome{student: student, house: house}
	return nil
}

// pick chooses uniformly among the houses with the minimum member count.
func (e *Engine) pick(counts []models.HouseCount) int64 {
	least := counts[0].Members
	for _, c := range counts[1:] {
		if c.Members < least {
			least = c.Members
		}
	}

	tied := make([]int64, 0, len(counts))
	for _, c := range counts {
		if c.Members == least {
			tied = append(tied, c.HouseID)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return tied[e.rng.IntN(len(tied))]
}

// FindExistingAssignment looks for a student who already went through
// assignment. A matric code, when given, is the only key consulted.
// Without one, name and department match case-insensitively and the
// lowest id wins when several students share the same details.
func (e *Engine) FindExistingAssignment(ctx context.Context, name, level, department, matric string) (*models.Student, error) {
	if matric != "" {
		student, err := e.store.GetStudentByMatric(ctx, matric)
		if err != nil {
			return nil, err
		}
		if student == nil || !student.AssignmentComplete {
			return nil, nil
		}
		return student, nil
	}

	matches, err := e.store.FindAssignedStudents(ctx, name, level, department)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		logger.Error.Printf("Ambiguous registration lookup for %q (%s, %s): %d matches, using student %d",
			name, level, department, len(matches), matches[0].ID)
	}
	return &matches[0], nil
}
