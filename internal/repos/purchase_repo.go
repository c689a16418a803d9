package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"posbackend/internal/domain"
)

type PurchaseRepo struct{ db *sqlx.DB }

func NewPurchaseRepo(db *sqlx.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// ---------- Commit path (caller owns the transaction) ----------

// InsertHeaderTx writes the header row. Callers pass TotalAmount 0 and
// finalize it with SetTotalTx before committing.
func (r *PurchaseRepo) InsertHeaderTx(ctx context.Context, tx *sqlx.Tx, h domain.PurchaseHeader) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
	  INSERT INTO purchases(purchase_id, customer_id, purchase_date, total_amount, created_at)
	  VALUES(?, ?, ?, ?, ?)
	`), h.ID, h.CustomerID, h.Date, h.TotalAmount, h.CreatedAt)
	return err
}

func (r *PurchaseRepo) InsertLineTx(ctx context.Context, tx *sqlx.Tx, l domain.PurchaseLine) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
	  INSERT INTO purchase_details(purchase_id, line_no, product_code, quantity, unit_price, subtotal)
	  VALUES(?, ?, ?, ?, ?, ?)
	`), l.HeaderID, l.LineNo, l.ProductCode, l.Quantity, l.UnitPrice, l.Subtotal)
	return err
}

// KnownCodesTx reports which of codes exist in the catalog.
func (r *PurchaseRepo) KnownCodesTx(ctx context.Context, tx *sqlx.Tx, codes []string) (map[string]bool, error) {
	out := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT product_code FROM items WHERE product_code IN (?)`, codes)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := tx.SelectContext(ctx, &found, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, c := range found {
		out[c] = true
	}
	return out, nil
}

// SetTotalTx does not inspect RowsAffected: MySQL reports 0 for an
// unchanged value, which is the normal case for a zero-priced purchase.
func (r *PurchaseRepo) SetTotalTx(ctx context.Context, tx *sqlx.Tx, id string, total int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE purchases SET total_amount = ? WHERE purchase_id = ?`), total, id)
	return err
}

// ---------- Read side ----------

// GetHeader returns sql.ErrNoRows for an unknown id.
func (r *PurchaseRepo) GetHeader(ctx context.Context, id string) (domain.PurchaseHeader, error) {
	var h domain.PurchaseHeader
	err := r.db.GetContext(ctx, &h, r.db.Rebind(`
		SELECT purchase_id, customer_id, purchase_date, total_amount, created_at
		FROM purchases
		WHERE purchase_id = ?
	`), id)
	return h, err
}

// ListLatest returns at most limit headers, newest first.
func (r *PurchaseRepo) ListLatest(ctx context.Context, limit int) ([]domain.PurchaseHeader, error) {
	out := []domain.PurchaseHeader{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT purchase_id, customer_id, purchase_date, total_amount, created_at
		FROM purchases
		ORDER BY created_at DESC, purchase_id DESC
		LIMIT ?
	`), limit)
	return out, err
}

// LinesFor loads the lines of every given header, keyed by header id and
// ordered by line number.
func (r *PurchaseRepo) LinesFor(ctx context.Context, ids []string) (map[string][]domain.PurchaseLine, error) {
	out := make(map[string][]domain.PurchaseLine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`
		SELECT d.purchase_id, d.line_no, d.product_code, COALESCE(i.product_name, '') AS product_name,
		       d.quantity, d.unit_price, d.subtotal
		FROM purchase_details d
		LEFT JOIN items i ON i.product_code = d.product_code
		WHERE d.purchase_id IN (?)
		ORDER BY d.purchase_id, d.line_no
	`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.PurchaseLine
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, l := range rows {
		out[l.HeaderID] = append(out[l.HeaderID], l)
	}
	return out, nil
}
