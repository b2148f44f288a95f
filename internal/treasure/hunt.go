// Package treasure runs the campus QR treasure hunt. Every scan credits
// the scanner's house on one shared "Treasure Hunt" event.
package treasure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/ledger"
	"github.com/shrimpsizemoose/housecup/internal/models"
	"github.com/shrimpsizemoose/housecup/internal/store"
)

const (
	EventTitle = "Treasure Hunt"

	maxAttempts = 3
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
	CreateQRCode(ctx context.Context, code *models.QRCode) error
	CountActiveQRCodes(ctx context.Context) (int, error)
	TreasureProgress(ctx context.Context, studentID int64) (*models.TreasureProgress, error)
	TreasureHunters(ctx context.Context) ([]models.TreasureHunter, error)
	ListHouses(ctx context.Context) ([]models.House, error)
}

type Ledger interface {
	AccrueInTx(ctx context.Context, tx store.Tx, eventID, houseID int64, delta int, reason, actor string) (ledger.Write, error)
	Committed(ctx context.Context, w ledger.Write)
}

type Notifier interface {
	TreasureFound(ctx context.Context, studentID int64, code models.QRCode)
}

type Hunt struct {
	store    Store
	ledger   Ledger
	notifier Notifier
	now      func() time.Time
}

// NewHunt wires the hunt. notifier may be nil.
func NewHunt(s Store, l Ledger, notifier Notifier) *Hunt {
	return &Hunt{store: s, ledger: l, notifier: notifier, now: time.Now}
}

type ScanResult struct {
	Code        models.QRCode `json:"qr_code"`
	HouseTotal  int           `json:"house_event_points"`
	PointsAdded int           `json:"points_added"`
}

// Scan records that studentID found code and credits their house. A
// second scan of the same code by the same student fails with
// ErrAlreadyScanned and changes nothing.
func (h *Hunt) Scan(ctx context.Context, studentID int64, code string) (*ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError("code", "is required")
	}

	res, err := backoff.Retry(ctx, func() (scanned, error) {
		res, err := h.scanOnce(ctx, studentID, code)
		if err != nil && !errors.Is(err, models.ErrTransient) {
			return res, backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug.Printf("Retrying scan of %s by student %d: %v", code, studentID, err)
		}
		return res, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxAttempts))
	if err != nil {
		return nil, err
	}
	qr, write := res.qr, res.write

	h.ledger.Committed(ctx, write)
	if h.notifier != nil {
		h.notifier.TreasureFound(ctx, studentID, *qr)
	}
	logger.Info.Printf("Student %d found treasure %s at %s", studentID, qr.Code, qr.LocationName)

	return &ScanResult{Code: *qr, HouseTotal: write.Entry.Points, PointsAdded: qr.Points}, nil
}

type scanned struct {
	qr    *models.QRCode
	write ledger.Write
}

func (h *Hunt) scanOnce(ctx context.Context, studentID int64, code string) (scanned, error) {
	var res scanned
	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		qr, err := tx.GetActiveQRCode(ctx, code)
		if err != nil {
			return err
		}
		if qr == nil {
			return fmt.Errorf("invalid QR code: %w", models.ErrNotFound)
		}

		student, err := tx.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if student == nil {
			return fmt.Errorf("student %d: %w", studentID, models.ErrNotFound)
		}
		if student.HouseID == nil {
			return models.NewValidationError("house", "you must be assigned to a house to hunt for treasure")
		}

		if err := tx.InsertQRScan(ctx, &models.QRScan{StudentID: studentID, QRCodeID: qr.ID, ScannedAt: h.now().Unix()}); err != nil {
			return err
		}

		event, err := h.ensureEvent(ctx, tx)
		if err != nil {
			return err
		}

		write, err := h.ledger.AccrueInTx(ctx, tx, event.ID, *student.HouseID, qr.Points,
			fmt.Sprintf("QR code %s found", qr.Code), student.Matric)
		if err != nil {
			return err
		}
		res = scanned{qr: qr, write: write}
		return nil
	})
	return res, err
}

// ensureEvent returns the shared hunt event, creating it on first use. Two
// first scans racing to create it make the loser retry.
func (h *Hunt) ensureEvent(ctx context.Context, tx store.Tx) (*models.Event, error) {
	event, err := tx.GetEventByTitle(ctx, EventTitle, models.CategoryTreasure)
	if err != nil || event != nil {
		return event, err
	}

	now := h.now()
	event = &models.Event{
		Title:       EventTitle,
		Description: "Points earned by finding QR codes around campus",
		Day:         now.Format("2006-01-02"),
		Time:        now.Format("15:04"),
		Category:    models.CategoryTreasure,
		Venue:       "Campus",
	}
	if err := tx.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, models.ErrDuplicateEvent) {
			return nil, fmt.Errorf("treasure event created concurrently: %w", models.ErrTransient)
		}
		return nil, err
	}
	return event, nil
}

// Progress summarizes studentID's hunt against the active codes.
func (h *Hunt) Progress(ctx context.Context, studentID int64) (*models.TreasureProgress, error) {
	progress, err := h.store.TreasureProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	total, err := h.store.CountActiveQRCodes(ctx)
	if err != nil {
		return nil, err
	}

	progress.TotalCodes = total
	progress.Remaining = max(0, total-progress.Scans)
	if total > 0 {
		progress.Percentage = progress.Scans * 100 / total
	}
	return progress, nil
}

type RankedHunter struct {
	Rank int `json:"rank"`
	models.TreasureHunter
	IsCurrentUser bool `json:"is_current_user"`
}

type HouseHunt struct {
	Rank         int          `json:"rank"`
	House        models.House `json:"house"`
	Points       int          `json:"total_points"`
	Scans        int          `json:"total_scans"`
	Participants int          `json:"participants"`
}

type Leaderboard struct {
	Hunters []RankedHunter `json:"hunters"`
	Houses  []HouseHunt    `json:"houses"`
}

// Leaderboard ranks students by treasure points and houses by the sum of
// their members' hunts. Houses with equal points keep registration order.
func (h *Hunt) Leaderboard(ctx context.Context, viewerID int64) (*Leaderboard, error) {
	hunters, err := h.store.TreasureHunters(ctx)
	if err != nil {
		return nil, err
	}
	houses, err := h.store.ListHouses(ctx)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{
		Hunters: make([]RankedHunter, 0, len(hunters)),
		Houses:  make([]HouseHunt, 0, len(houses)),
	}
	byHouse := make(map[int64]*HouseHunt, len(houses))
	for _, house := range houses {
		board.Houses = append(board.Houses, HouseHunt{House: house})
	}
	for i := range board.Houses {
		byHouse[board.Houses[i].House.ID] = &board.Houses[i]
	}

	for i, hunter := range hunters {
		board.Hunters = append(board.Hunters, RankedHunter{
			Rank:           i + 1,
			TreasureHunter: hunter,
			IsCurrentUser:  hunter.StudentID == viewerID,
		})
		if hunter.HouseID == nil {
			continue
		}
		if hh, ok := byHouse[*hunter.HouseID]; ok {
			hh.Points += hunter.Points
			hh.Scans += hunter.Scans
			hh.Participants++
		}
	}

	sort.SliceStable(board.Houses, func(i, j int) bool {
		return board.Houses[i].Points > board.Houses[j].Points
	})
	for i := range board.Houses {
		board.Houses[i].Rank = i + 1
	}
	return board, nil
}

// CreateCode registers a new active QR code.
func (h *Hunt) CreateCode(ctx context.Context, code *models.QRCode) error {
	code.Code = strings.TrimSpace(code.Code)
	code.IsActive = true
	code.CreatedAt = h.now().Unix()
	if err := code.Validate(); err != nil {
		return err
	}
	return h.store.CreateQRCode(ctx, code)
}
