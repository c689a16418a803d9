package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"posbackend/internal/domain"
	"posbackend/internal/events"
	applog "posbackend/internal/log"
	"posbackend/internal/repos"
	"posbackend/internal/validate"
)

// ErrCommit wraps every storage failure during a commit. Nothing was persisted.
var ErrCommit = errors.New("purchase commit failed")

const (
	// fixed width so created_at sorts lexically in every dialect
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout      = "2006-01-02"

	MaxListLimit = 100
)

type PurchaseStore interface {
	KnownCodesTx(ctx context.Context, tx *sqlx.Tx, codes []string) (map[string]bool, error)
	InsertHeaderTx(ctx context.Context, tx *sqlx.Tx, h domain.PurchaseHeader) error
	InsertLineTx(ctx context.Context, tx *sqlx.Tx, l domain.PurchaseLine) error
	SetTotalTx(ctx context.Context, tx *sqlx.Tx, id string, total int64) error
	GetHeader(ctx context.Context, id string) (domain.PurchaseHeader, error)
	ListLatest(ctx context.Context, limit int) ([]domain.PurchaseHeader, error)
	LinesFor(ctx context.Context, ids []string) (map[string][]domain.PurchaseLine, error)
}

type PurchaseService struct {
	DB         *sqlx.DB
	Purchases  PurchaseStore
	Events     events.Publisher
	CustomerID string
	Now        func() time.Time
	NewID      func() string
}

func NewPurchaseService(db *sqlx.DB, purchases PurchaseStore, pub events.Publisher, customerID string) *PurchaseService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &PurchaseService{
		DB:         db,
		Purchases:  purchases,
		Events:     pub,
		CustomerID: customerID,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// Commit records a purchase: header with total 0, one detail per line in
// input order numbered from 1, then the header total. All of it commits in
// one transaction or none of it does.
func (s *PurchaseService) Commit(ctx context.Context, lines []domain.LineInput) (domain.CommitResult, error) {
	lines, err := checkLines(lines)
	if err != nil {
		return domain.CommitResult{}, err
	}

	now := s.Now().UTC()
	h := domain.PurchaseHeader{
		ID:          s.NewID(),
		CustomerID:  s.CustomerID,
		Date:        now.Format(dateLayout),
		TotalAmount: 0,
		CreatedAt:   now.Format(createdAtLayout),
	}

	var total int64
	err = repos.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		if err := s.checkCatalog(ctx, tx, lines); err != nil {
			return err
		}
		if err := s.Purchases.InsertHeaderTx(ctx, tx, h); err != nil {
			return fmt.Errorf("insert header: %w", err)
		}
		for i, in := range lines {
			sub := in.UnitPrice * in.Quantity // bounds checked by checkLines
			total += sub
			if err := s.Purchases.InsertLineTx(ctx, tx, domain.PurchaseLine{
				HeaderID:    h.ID,
				LineNo:      i + 1,
				ProductCode: in.ProductCode,
				Quantity:    in.Quantity,
				UnitPrice:   in.UnitPrice,
				Subtotal:    sub,
			}); err != nil {
				return fmt.Errorf("insert line %d: %w", i+1, err)
			}
		}
		if err := s.Purchases.SetTotalTx(ctx, tx, h.ID, total); err != nil {
			return fmt.Errorf("update total: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrValidation) {
		return domain.CommitResult{}, err
	}
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("%w: %w", ErrCommit, err)
	}

	res := domain.CommitResult{HeaderID: h.ID, TotalAmount: total, Lines: len(lines)}
	s.publish(ctx, h, res, now)
	return res, nil
}

// checkLines rejects the whole request on the first bad line and returns
// a normalized copy (trimmed codes).
func checkLines(lines []domain.LineInput) ([]domain.LineInput, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyPurchase
	}
	out := make([]domain.LineInput, len(lines))
	var total int64
	for i, in := range lines {
		code, ok := validate.Code(in.ProductCode)
		if !ok {
			return nil, invalidLine(i, "invalid product_code")
		}
		if !validate.Quantity(in.Quantity) {
			return nil, invalidLine(i, "quantity must be a positive integer")
		}
		if !validate.UnitPrice(in.UnitPrice) {
			return nil, invalidLine(i, "unit_price must be a non-negative integer")
		}
		var sumOK bool
		if _, total, sumOK = validate.MulAdd(total, in.UnitPrice, in.Quantity); !sumOK {
			return nil, invalidLine(i, "amount out of range")
		}
		in.ProductCode = code
		out[i] = in
	}
	return out, nil
}

// checkCatalog runs before any write in the commit transaction and rejects
// the first line whose code is not a registered product.
func (s *PurchaseService) checkCatalog(ctx context.Context, tx *sqlx.Tx, lines []domain.LineInput) error {
	seen := make(map[string]bool, len(lines))
	codes := make([]string, 0, len(lines))
	for _, in := range lines {
		if !seen[in.ProductCode] {
			seen[in.ProductCode] = true
			codes = append(codes, in.ProductCode)
		}
	}
	known, err := s.Purchases.KnownCodesTx(ctx, tx, codes)
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	for i, in := range lines {
		if !known[in.ProductCode] {
			return invalidLine(i, "unknown product_code %q", in.ProductCode)
		}
	}
	return nil
}

func (s *PurchaseService) publish(ctx context.Context, h domain.PurchaseHeader, res domain.CommitResult, at time.Time) {
	// the purchase is already durable; the event must not outlive a slow broker
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	err := s.Events.PublishPurchaseCommitted(pctx, events.PurchaseCommitted{
		HeaderID:    res.HeaderID,
		CustomerID:  h.CustomerID,
		Date:        h.Date,
		TotalAmount: res.TotalAmount,
		Lines:       res.Lines,
		CommittedAt: at.Format(time.RFC3339Nano),
	})
	if err != nil {
		applog.Error(nil, "purchase.event.fail", err, map[string]any{"header_id": res.HeaderID})
	}
}

// Get returns found=false for an unknown id.
func (s *PurchaseService) Get(ctx context.Context, id string) (domain.PurchaseSummary, bool, error) {
	h, err := s.Purchases.GetHeader(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PurchaseSummary{}, false, nil
	}
	if err != nil {
		return domain.PurchaseSummary{}, false, err
	}
	lines, err := s.Purchases.LinesFor(ctx, []string{id})
	if err != nil {
		return domain.PurchaseSummary{}, false, err
	}
	return domain.PurchaseSummary{PurchaseHeader: h, Lines: nonNil(lines[id])}, true, nil
}

// ListRecent returns the newest purchases with their lines; limit is clamped to [1, MaxListLimit].
func (s *PurchaseService) ListRecent(ctx context.Context, limit int) ([]domain.PurchaseSummary, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	headers, err := s.Purchases.ListLatest(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}
	lines, err := s.Purchases.LinesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseSummary, len(headers))
	for i, h := range headers {
		out[i] = domain.PurchaseSummary{PurchaseHeader: h, Lines: nonNil(lines[h.ID])}
	}
	return out, nil
}

func nonNil(ls []domain.PurchaseLine) []domain.PurchaseLine {
	if ls == nil {
		return []domain.PurchaseLine{}
	}
	return ls
}
