package mysql

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"auction-marketplace/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols    = []string{"id", "title", "description", "start_price", "current_price", "start_time", "end_time", "seller_id", "category_id", "status", "highest_bidder_id", "last_bid_at", "winner_bid_id", "created_at", "updated_at"}
	lockSQL = `(?s)SELECT .+ FROM auctions WHERE id = \? FOR UPDATE`
)

func newMock(t *testing.T) (*MySQLLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLLedger(db), mock
}

func auctionRow(status domain.AuctionStatus) *sqlmock.Rows {
	var highest driver.Value
	if status == domain.AuctionOpen {
		highest = "u0"
	}
	return sqlmock.NewRows(cols).AddRow(
		"a1", "Lamp", "Brass lamp", "10.00", "12.00", t0, t0.Add(time.Hour),
		"seller", nil, int64(status), highest, nil, nil, t0, t0)
}

func TestWithAuctionNotFound(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("missing").WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectRollback()

	err := ledger.WithAuction(context.Background(), "missing", func(ctx context.Context, tx domain.AuctionTx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBidWritesBidAndPriceInOneTransaction(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("a1").WillReturnRows(auctionRow(domain.AuctionOpen))
	mock.ExpectExec(`INSERT INTO bids`).
		WithArgs("b1", "a1", "u1", sqlmock.AnyArg(), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE auctions\s+SET current_price = \?`).
		WithArgs(sqlmock.AnyArg(), "u1", t0, t0.Add(2*time.Hour), t0, "a1", int(domain.AuctionOpen)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ledger.WithAuction(context.Background(), "a1", func(ctx context.Context, tx domain.AuctionTx) error {
		a := tx.Auction()
		assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(12)))
		assert.Equal(t, "u0", a.HighestBidderID)

		err := tx.CommitBid(ctx, &domain.Bid{
			ID: "b1", AuctionID: "a1", BidderID: "u1", Amount: decimal.NewFromInt(13), Timestamp: t0,
		}, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "u1", a.HighestBidderID)
		assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(13)))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBidRollsBackWhenAuctionNoLongerOpen(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("a1").WillReturnRows(auctionRow(domain.AuctionOpen))
	mock.ExpectExec(`INSERT INTO bids`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE auctions\s+SET current_price`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := ledger.WithAuction(context.Background(), "a1", func(ctx context.Context, tx domain.AuctionTx) error {
		return tx.CommitBid(ctx, &domain.Bid{
			ID: "b1", AuctionID: "a1", BidderID: "u1", Amount: decimal.NewFromInt(13), Timestamp: t0,
		}, t0.Add(time.Hour))
	})
	assert.ErrorIs(t, err, domain.ErrAuctionNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSettlementMapsDuplicateKey(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("a1").WillReturnRows(auctionRow(domain.AuctionOpen))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM settlements WHERE auction_id = \?\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(int64(0)))
	mock.ExpectExec(`INSERT INTO settlements`).
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'a1'"})
	mock.ExpectRollback()

	err := ledger.WithAuction(context.Background(), "a1", func(ctx context.Context, tx domain.AuctionTx) error {
		exists, err := tx.SettlementExists(ctx)
		require.NoError(t, err)
		require.False(t, exists)
		return tx.CreateSettlement(ctx, &domain.Settlement{
			ID: "s1", AuctionID: "a1", WinnerBidID: "b1", WinnerID: "u1",
			Amount: decimal.NewFromInt(13), PaymentStatus: domain.PaymentPending,
			CreatedAt: t0, UpdatedAt: t0,
		})
	})
	assert.ErrorIs(t, err, domain.ErrSettlementConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseAuctionAlreadyClosed(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("a1").WillReturnRows(auctionRow(domain.AuctionClosed))
	mock.ExpectExec(`UPDATE auctions SET status = \?, winner_bid_id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := ledger.WithAuction(context.Background(), "a1", func(ctx context.Context, tx domain.AuctionTx) error {
		return tx.CloseAuction(ctx, "")
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExpiredOpenAuctions(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectQuery(`SELECT id FROM auctions\s+WHERE status = \? AND end_time <= \?`).
		WithArgs(int(domain.AuctionOpen), t0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := ledger.GetExpiredOpenAuctions(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettlementNotFound(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectQuery(`FROM settlements WHERE auction_id = \?`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := ledger.GetSettlement(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrSettlementNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBidsUnknownAuction(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM auctions WHERE id = \?\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(int64(0)))

	_, err := ledger.ListBids(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithAuctionMarksDeadlocksTransient(t *testing.T) {
	ledger, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("a1").
		WillReturnError(&mysqldrv.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	err := ledger.WithAuction(context.Background(), "a1", func(ctx context.Context, tx domain.AuctionTx) error {
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}
