package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-marketplace/internal/domain"

	mysqldrv "github.com/go-sql-driver/mysql"
)

// MySQL server error numbers.
const (
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
	erDupEntry        = 1062
)

func settlementExists(ctx context.Context, tx *sql.Tx, auctionID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM settlements WHERE auction_id = ?)`, auctionID).Scan(&exists)
	return exists, err
}

func insertSettlement(ctx context.Context, tx *sql.Tx, s *domain.Settlement) error {
	query := `
        INSERT INTO settlements (id, auction_id, winner_bid_id, winner_id, amount, payment_status,
            created_at, paid_at, shipped_at, completed_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := tx.ExecContext(ctx, query,
		s.ID, s.AuctionID, s.WinnerBidID, s.WinnerID, s.Amount, string(s.PaymentStatus),
		s.CreatedAt.UTC(), nullTime(s.PaidAt), nullTime(s.ShippedAt), nullTime(s.CompletedAt),
		s.UpdatedAt.UTC())
	if isDuplicateKey(err) {
		return domain.ErrSettlementConflict
	}
	return err
}

func isDuplicateKey(err error) bool {
	var myErr *mysqldrv.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

// isRetryable reports lock conflicts that are safe to retry with fresh state.
func isRetryable(err error) bool {
	var myErr *mysqldrv.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == erLockDeadlock || myErr.Number == erLockWaitTimeout
}

func (r *MySQLLedger) GetSettlement(ctx context.Context, auctionID string) (*domain.Settlement, error) {
	query := `
        SELECT id, auction_id, winner_bid_id, winner_id, amount, payment_status,
            created_at, paid_at, shipped_at, completed_at, updated_at
        FROM settlements WHERE auction_id = ?
    `
	var (
		s                         domain.Settlement
		status                    string
		paidAt, shippedAt, doneAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&s.ID, &s.AuctionID, &s.WinnerBidID, &s.WinnerID, &s.Amount, &status,
		&s.CreatedAt, &paidAt, &shippedAt, &doneAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettlementNotFound
		}
		return nil, err
	}

	s.PaymentStatus = domain.PaymentStatus(status)
	s.PaidAt = timePtr(paidAt)
	s.ShippedAt = timePtr(shippedAt)
	s.CompletedAt = timePtr(doneAt)
	return &s, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
