package services_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbackend/internal/domain"
	"posbackend/internal/events"
	"posbackend/internal/repos"
	"posbackend/internal/services"
)

// seeded catalog codes
const (
	codePencil = "1234567888"
	codePen    = "1111122222"
	codeTea    = "12345678901"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type recordingPublisher struct {
	mu   sync.Mutex
	got  []events.PurchaseCommitted
	fail error
}

func (p *recordingPublisher) PublishPurchaseCommitted(_ context.Context, e events.PurchaseCommitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return p.fail
}

// failingStore injects an error at one step of the commit.
type failingStore struct {
	*repos.PurchaseRepo
	failTotal  bool
	failLineNo int
}

var errInjected = errors.New("injected storage failure")

func (f *failingStore) InsertLineTx(ctx context.Context, tx *sqlx.Tx, l domain.PurchaseLine) error {
	if l.LineNo == f.failLineNo {
		return errInjected
	}
	return f.PurchaseRepo.InsertLineTx(ctx, tx, l)
}

func (f *failingStore) SetTotalTx(ctx context.Context, tx *sqlx.Tx, id string, total int64) error {
	if f.failTotal {
		return errInjected
	}
	return f.PurchaseRepo.SetTotalTx(ctx, tx, id, total)
}

func countRows(t *testing.T, db *sqlx.DB) (headers, lines int) {
	t.Helper()
	require.NoError(t, db.Get(&headers, `SELECT COUNT(*) FROM purchases`))
	require.NoError(t, db.Get(&lines, `SELECT COUNT(*) FROM purchase_details`))
	return headers, lines
}

func storedTotal(t *testing.T, db *sqlx.DB, id string) int64 {
	t.Helper()
	var total int64
	require.NoError(t, db.Get(&total, `SELECT total_amount FROM purchases WHERE purchase_id = ?`, id))
	return total
}

func TestCommit_ExampleTotals(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	// prices captured at sale time differ from the catalog's 170/200
	res, err := svc.Commit(context.Background(), []domain.LineInput{
		{ProductCode: codePencil, ProductName: "A", UnitPrice: 100, Quantity: 2},
		{ProductCode: codePen, ProductName: "B", UnitPrice: 50, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(350), res.TotalAmount)
	assert.NotEmpty(t, res.HeaderID)
	assert.Equal(t, int64(350), storedTotal(t, db, res.HeaderID))

	var subs []int64
	require.NoError(t, db.Select(&subs, `SELECT subtotal FROM purchase_details WHERE purchase_id = ? ORDER BY line_no`, res.HeaderID))
	assert.Equal(t, []int64{200, 150}, subs)
}

func TestCommit_EmptyIsRejectedWithoutWrites(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	for _, in := range [][]domain.LineInput{nil, {}} {
		_, err := svc.Commit(context.Background(), in)
		assert.ErrorIs(t, err, services.ErrEmptyPurchase)
		assert.ErrorIs(t, err, services.ErrValidation)
	}
	h, l := countRows(t, db)
	assert.Zero(t, h)
	assert.Zero(t, l)
}

func TestCommit_InvalidLinesAreRejectedWithoutWrites(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	cases := map[string]domain.LineInput{
		"zero quantity":     {ProductCode: codePen, UnitPrice: 200, Quantity: 0},
		"negative quantity": {ProductCode: codePen, UnitPrice: 200, Quantity: -1},
		"negative price":    {ProductCode: codePen, UnitPrice: -1, Quantity: 1},
		"missing code":      {ProductCode: " ", UnitPrice: 200, Quantity: 1},
		"overflow":          {ProductCode: codePen, UnitPrice: 1 << 62, Quantity: 4},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Commit(context.Background(), []domain.LineInput{
				{ProductCode: codeTea, UnitPrice: 150, Quantity: 1},
				bad,
			})
			assert.ErrorIs(t, err, services.ErrValidation)
			assert.ErrorContains(t, err, "items[1]")
		})
	}
	h, l := countRows(t, db)
	assert.Zero(t, h)
	assert.Zero(t, l)
}

func TestCommit_LineNumbersAreSequential(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	in := []domain.LineInput{
		{ProductCode: codeTea, UnitPrice: 150, Quantity: 1},
		{ProductCode: codeTea, UnitPrice: 150, Quantity: 2}, // same product twice is two lines
		{ProductCode: codePen, UnitPrice: 200, Quantity: 1},
		{ProductCode: codePencil, UnitPrice: 0, Quantity: 9},
		{ProductCode: " " + codePen + " ", UnitPrice: 1, Quantity: 1},
	}
	res, err := svc.Commit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Lines)

	var nos []int
	require.NoError(t, db.Select(&nos, `SELECT line_no FROM purchase_details WHERE purchase_id = ? ORDER BY line_no`, res.HeaderID))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, nos)

	var codes []string
	require.NoError(t, db.Select(&codes, `SELECT product_code FROM purchase_details WHERE purchase_id = ? ORDER BY line_no`, res.HeaderID))
	assert.Equal(t, []string{codeTea, codeTea, codePen, codePencil, codePen}, codes)
	assert.Equal(t, int64(150+300+200+0+1), res.TotalAmount)
}

func TestCommit_TotalIsExactIntegerSum(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")
	codes := []string{codePencil, codePen, codeTea}
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 40; i++ {
		n := 1 + r.Intn(8)
		var want int64
		in := make([]domain.LineInput, n)
		for j := range in {
			price, qty := int64(r.Intn(100000)), int64(1+r.Intn(50))
			in[j] = domain.LineInput{ProductCode: codes[r.Intn(len(codes))], UnitPrice: price, Quantity: qty}
			want += price * qty
		}
		res, err := svc.Commit(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, want, res.TotalAmount)
		require.Equal(t, want, storedTotal(t, db, res.HeaderID))
	}
}

func TestCommit_ConcurrentCommitsAreIndependent(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	const workers = 8
	results := make([]domain.CommitResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			in := make([]domain.LineInput, w+1)
			for j := range in {
				in[j] = domain.LineInput{ProductCode: codeTea, UnitPrice: int64(w + 1), Quantity: 10}
			}
			results[w], errs[w] = svc.Commit(context.Background(), in)
		}(w)
	}
	wg.Wait()

	seen := map[string]bool{}
	for w := 0; w < workers; w++ {
		require.NoError(t, errs[w])
		id := results[w].HeaderID
		assert.False(t, seen[id], "duplicate header id %s", id)
		seen[id] = true

		n := w + 1
		assert.Equal(t, int64(n*(w+1)*10), results[w].TotalAmount)
		assert.Equal(t, results[w].TotalAmount, storedTotal(t, db, id))

		var lines int
		require.NoError(t, db.Get(&lines, `SELECT COUNT(*) FROM purchase_details WHERE purchase_id = ?`, id))
		assert.Equal(t, n, lines)

		var foreign int
		require.NoError(t, db.Get(&foreign, `SELECT COUNT(*) FROM purchase_details WHERE purchase_id = ? AND unit_price <> ?`, id, w+1))
		assert.Zero(t, foreign)
	}
}

func TestCommit_FailureBeforeTotalRollsBackHeader(t *testing.T) {
	db := memdb(t)
	store := &failingStore{PurchaseRepo: repos.NewPurchaseRepo(db), failTotal: true}
	pub := &recordingPublisher{}
	svc := services.NewPurchaseService(db, store, pub, "C001")

	_, err := svc.Commit(context.Background(), []domain.LineInput{
		{ProductCode: codePen, UnitPrice: 200, Quantity: 1},
		{ProductCode: codeTea, UnitPrice: 150, Quantity: 1},
	})
	require.ErrorIs(t, err, services.ErrCommit)
	require.ErrorIs(t, err, errInjected)
	assert.NotErrorIs(t, err, services.ErrValidation)

	h, l := countRows(t, db)
	assert.Zero(t, h, "header must not survive rollback")
	assert.Zero(t, l)
	assert.Empty(t, pub.got)
}

func TestCommit_FailureOnLaterLineRollsBackEverything(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, &failingStore{PurchaseRepo: repos.NewPurchaseRepo(db), failLineNo: 3}, nil, "C001")

	_, err := svc.Commit(context.Background(), []domain.LineInput{
		{ProductCode: codePen, UnitPrice: 200, Quantity: 1},
		{ProductCode: codeTea, UnitPrice: 150, Quantity: 1},
		{ProductCode: codePencil, UnitPrice: 170, Quantity: 1},
	})
	require.ErrorIs(t, err, services.ErrCommit)
	h, l := countRows(t, db)
	assert.Zero(t, h)
	assert.Zero(t, l)
}

func TestCommit_UnknownProductIsValidationError(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	_, err := svc.Commit(context.Background(), []domain.LineInput{
		{ProductCode: codePen, UnitPrice: 200, Quantity: 1},
		{ProductCode: codePen, UnitPrice: 200, Quantity: 2},
		{ProductCode: "4900000000000", UnitPrice: 10, Quantity: 1},
	})
	require.ErrorIs(t, err, services.ErrValidation)
	assert.NotErrorIs(t, err, services.ErrCommit)
	assert.ErrorContains(t, err, "items[2]")
	assert.ErrorContains(t, err, "unknown product_code")
	h, l := countRows(t, db)
	assert.Zero(t, h)
	assert.Zero(t, l)
}

func TestCommit_HeaderFieldsAndEvent(t *testing.T) {
	db := memdb(t)
	pub := &recordingPublisher{}
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), pub, "C001")
	svc.Now = func() time.Time { return time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("JST", 9*3600)) }
	svc.NewID = func() string { return "00000000-0000-4000-8000-000000000001" }

	res, err := svc.Commit(context.Background(), []domain.LineInput{{ProductCode: codeTea, UnitPrice: 150, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", res.HeaderID)

	got, found, err := svc.Get(context.Background(), res.HeaderID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "C001", got.CustomerID)
	assert.Equal(t, "2026-10-14", got.Date) // 14:30 UTC
	assert.Equal(t, int64(300), got.TotalAmount)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "おーいお茶", got.Lines[0].ProductName)

	require.Len(t, pub.got, 1)
	assert.Equal(t, res.HeaderID, pub.got[0].HeaderID)
	assert.Equal(t, int64(300), pub.got[0].TotalAmount)
	assert.Equal(t, 1, pub.got[0].Lines)
}

func TestCommit_PublisherFailureDoesNotFailCommit(t *testing.T) {
	db := memdb(t)
	pub := &recordingPublisher{fail: errors.New("broker down")}
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), pub, "C001")

	res, err := svc.Commit(context.Background(), []domain.LineInput{{ProductCode: codeTea, UnitPrice: 150, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(150), storedTotal(t, db, res.HeaderID))
}

func TestGet_Unknown(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")

	_, found, err := svc.Get(context.Background(), "00000000-0000-4000-8000-00000000ffff")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListRecent(t *testing.T) {
	db := memdb(t)
	svc := services.NewPurchaseService(db, repos.NewPurchaseRepo(db), nil, "C001")
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.Now = func() time.Time { return at }
		svc.NewID = func() string { return fmt.Sprintf("00000000-0000-4000-8000-%012d", i) }
		_, err := svc.Commit(context.Background(), []domain.LineInput{{ProductCode: codeTea, UnitPrice: int64(i), Quantity: 1}})
		require.NoError(t, err)
	}

	got, err := svc.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "00000000-0000-4000-8000-000000000011", got[0].ID)
	assert.Equal(t, int64(11), got[0].TotalAmount)
	assert.Len(t, got[0].Lines, 1)

	got, err = svc.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
