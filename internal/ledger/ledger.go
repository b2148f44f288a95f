// Package ledger records house points. Every (event, house) pair has at
// most one entry; changes to an existing entry go through AmendScore or
// AccrueInTx and leave an audit row behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
)

const maxAttempts = 3

const (
	KindRecord = "record"
	KindAmend  = "amend"
	KindAccrue = "accrue"
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
	TotalPointsForHouse(ctx context.Context, houseID int64) (int, error)
	GetScoreByID(ctx context.Context, id int64) (*models.ScoreEntry, error)
	ListAmendments(ctx context.Context, scoreID int64) ([]models.ScoreAmendment, error)
}

// Invalidator drops any memoized leaderboard.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Observer is told about every committed write. It runs on its own
// goroutine and cannot fail the write.
type Observer interface {
	ScoreRecorded(ctx context.Context, w Write)
}

// Write describes one committed change to the ledger.
type Write struct {
	Entry      models.ScoreEntry
	Kind       string
	Delta      int
	EventTitle string
	Category   models.Category
	HouseName  string
}

type Ledger struct {
	store         Store
	allowNegative bool
	invalidator   Invalidator
	observer      Observer
	now           func() time.Time
}

type Option func(*Ledger)

func WithNegativePoints(allow bool) Option {
	return func(l *Ledger) { l.allowNegative = allow }
}

func WithInvalidator(i Invalidator) Option {
	return func(l *Ledger) { l.invalidator = i }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

func New(s Store, opts ...Option) *Ledger {
	l := &Ledger{store: s, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetObserver replaces the write observer. It must be called before the
// ledger serves traffic.
func (l *Ledger) SetObserver(o Observer) {
	l.observer = o
}

func (l *Ledger) checkPoints(points int) error {
	if points < 0 && !l.allowNegative {
		return models.NewValidationError("points", "must not be negative")
	}
	return nil
}

// RecordScore creates the single entry for (eventID, houseID). A second
// call for the same pair fails with ErrDuplicateEntry.
func (l *Ledger) RecordScore(ctx context.Context, eventID, houseID int64, points int) (*models.ScoreEntry, error) {
	if err := l.checkPoints(points); err != nil {
		return nil, err
	}

	w, err := retry(ctx, func() (Write, error) {
		var w Write
		err := l.store.WithTx(ctx, func(tx store.Tx) error {
			event, house, err := lookup(ctx, tx, eventID, houseID)
			if err != nil {
				return err
			}
			entry := models.ScoreEntry{
				EventID:   eventID,
				HouseID:   houseID,
				Points:    points,
				CreatedAt: l.now().Unix(),
			}
			if err := tx.InsertScore(ctx, &entry); err != nil {
				return err
			}
			w = Write{Entry: entry, Kind: KindRecord, Delta: points, EventTitle: event.Title, Category: event.Category, HouseName: house.Name}
			return nil
		})
		return w, err
	})
	if err != nil {
		return nil, err
	}

	l.Committed(ctx, w)
	return &w.Entry, nil
}

// AmendScore overwrites the points of an existing entry and records who
// changed it and why.
func (l *Ledger) AmendScore(ctx context.Context, eventID, houseID int64, points int, reason, actor string) (*models.ScoreEntry, error) {
	if err := l.checkPoints(points); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, models.NewValidationError("reason", "is required when amending a score")
	}

	w, err := retry(ctx, func() (Write, error) {
		var w Write
		err := l.store.WithTx(ctx, func(tx store.Tx) error {
			event, house, err := lookup(ctx, tx, eventID, houseID)
			if err != nil {
				return err
			}
			entry, err := tx.GetScoreForUpdate(ctx, eventID, houseID)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no score for %s and %s: %w", event.Title, house.Name, models.ErrNotFound)
			}
			previous := entry.Points
			if err := l.amend(ctx, tx, entry, points, reason, actor); err != nil {
				return err
			}
			w = Write{Entry: *entry, Kind: KindAmend, Delta: points - previous, EventTitle: event.Title, Category: event.Category, HouseName: house.Name}
			return nil
		})
		return w, err
	})
	if err != nil {
		return nil, err
	}

	l.Committed(ctx, w)
	return &w.Entry, nil
}

// AccrueInTx adds delta to the (eventID, houseID) entry inside an already
// open transaction, creating the entry when missing. The caller must pass
// the returned Write to Committed once the transaction commits.
func (l *Ledger) AccrueInTx(ctx context.Context, tx store.Tx, eventID, houseID int64, delta int, reason, actor string) (Write, error) {
	if err := l.checkPoints(delta); err != nil {
		return Write{}, err
	}

	event, house, err := lookup(ctx, tx, eventID, houseID)
	if err != nil {
		return Write{}, err
	}

	entry := &models.ScoreEntry{
		EventID:   eventID,
		HouseID:   houseID,
		Points:    delta,
		CreatedAt: l.now().Unix(),
	}
	created, err := tx.InsertScoreIfAbsent(ctx, entry)
	if err != nil {
		return Write{}, err
	}
	if !created {
		// the increment happens in the database so concurrent accruals add up
		entry, err = tx.AddScorePoints(ctx, eventID, houseID, delta)
		if err != nil {
			return Write{}, err
		}
		if err := l.audit(ctx, tx, entry.ID, entry.Points-delta, entry.Points, reason, actor); err != nil {
			return Write{}, err
		}
	}

	return Write{Entry: *entry, Kind: KindAccrue, Delta: delta, EventTitle: event.Title, Category: event.Category, HouseName: house.Name}, nil
}

func (l *Ledger) amend(ctx context.Context, tx store.Tx, entry *models.ScoreEntry, points int, reason, actor string) error {
	if err := tx.UpdateScorePoints(ctx, entry.ID, points); err != nil {
		return err
	}
	if err := l.audit(ctx, tx, entry.ID, entry.Points, points, reason, actor); err != nil {
		return err
	}
	entry.Points = points
	return nil
}

func (l *Ledger) audit(ctx context.Context, tx store.Tx, scoreID int64, previous, points int, reason, actor string) error {
	return tx.InsertAmendment(ctx, &models.ScoreAmendment{
		ScoreID:        scoreID,
		PreviousPoints: previous,
		NewPoints:      points,
		Reason:         reason,
		AmendedBy:      actor,
		AmendedAt:      l.now().Unix(),
	})
}

// Committed runs the post-commit hooks for w.
func (l *Ledger) Committed(ctx context.Context, w Write) {
	if l.invalidator != nil {
		l.invalidator.Invalidate(ctx)
	}

	metrics.ScoresRecordedTotal.WithLabelValues(string(w.Category), w.Kind).Inc()
	metrics.ScorePointsHistogram.WithLabelValues(string(w.Category)).Observe(float64(w.Delta))
	logger.Info.Printf("Score %s: %s %+d in %s (now %d)", w.Kind, w.HouseName, w.Delta, w.EventTitle, w.Entry.Points)

	if l.observer != nil {
		go l.observer.ScoreRecorded(context.WithoutCancel(ctx), w)
	}
}

// TotalPointsForHouse sums every entry of the house. It reads the same
// table the leaderboard aggregates.
func (l *Ledger) TotalPointsForHouse(ctx context.Context, houseID int64) (int, error) {
	return l.store.TotalPointsForHouse(ctx, houseID)
}

// History returns the audit trail of one entry, oldest change first.
func (l *Ledger) History(ctx context.Context, scoreID int64) ([]models.ScoreAmendment, error) {
	entry, err := l.store.GetScoreByID(ctx, scoreID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("score %d: %w", scoreID, models.ErrNotFound)
	}
	amendments, err := l.store.ListAmendments(ctx, scoreID)
	if err != nil {
		return nil, err
	}
	if amendments == nil {
		amendments = []models.ScoreAmendment{}
	}
	return amendments, nil
}

func lookup(ctx context.Context, tx store.Tx, eventID, houseID int64) (*models.Event, *models.House, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return nil, nil, fmt.Errorf("event %d: %w", eventID, models.ErrNotFound)
	}
	house, err := tx.GetHouse(ctx, houseID)
	if err != nil {
		return nil, nil, err
	}
	if house == nil {
		return nil, nil, fmt.Errorf("house %d: %w", houseID, models.ErrNotFound)
	}
	return event, house, nil
}

// retry reruns op while it fails with a transient store error.
func retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !errors.Is(err, models.ErrTransient) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxAttempts))
}
