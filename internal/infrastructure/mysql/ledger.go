package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

const auctionColumns = `id, title, description, start_price, current_price, start_time, end_time,
        seller_id, category_id, status, highest_bidder_id, last_bid_at, winner_bid_id,
        created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// MySQLLedger stores auctions, bids and settlements in MySQL. Every write to
// an auction row happens inside WithAuction, under SELECT ... FOR UPDATE.
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (r *MySQLLedger) WithAuction(ctx context.Context, auctionID string, fn func(ctx context.Context, tx domain.AuctionTx) error) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? FOR UPDATE`
		auction, err := scanAuction(tx.QueryRowContext(ctx, query, auctionID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("locking auction: %w", err)
		}
		return fn(ctx, &auctionTx{tx: tx, auction: auction})
	})
	if isRetryable(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return err
}

func (r *MySQLLedger) GetExpiredOpenAuctions(ctx context.Context, now time.Time) ([]string, error) {
	query := `
        SELECT id FROM auctions
        WHERE status = ? AND end_time <= ?
        ORDER BY end_time ASC
    `
	rows, err := r.db.QueryContext(ctx, query, int(domain.AuctionOpen), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MySQLLedger) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, description, start_price, current_price, start_time, end_time,
            seller_id, category_id, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, auction.Description,
		auction.StartPrice, auction.CurrentPrice,
		auction.StartTime.UTC(), auction.EndTime.UTC(),
		auction.SellerID, nullString(auction.CategoryID), int(auction.Status),
		auction.CreatedAt.UTC(), auction.UpdatedAt.UTC())
	return err
}

func (r *MySQLLedger) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return auction, nil
}

// UpdateAuctionStatus applies an administrative status change. It takes the
// same row lock as bidding and closing, so it cannot interleave with them.
func (r *MySQLLedger) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	return r.WithAuction(ctx, auctionID, func(ctx context.Context, tx domain.AuctionTx) error {
		t := tx.(*auctionTx)
		if !t.auction.Status.CanTransitionTo(status) {
			return domain.ErrInvalidTransition
		}
		now := time.Now().UTC()
		query := `UPDATE auctions SET status = ?, updated_at = ? WHERE id = ?`
		if _, err := t.tx.ExecContext(ctx, query, int(status), now, auctionID); err != nil {
			return err
		}
		t.auction.Status = status
		t.auction.UpdatedAt = now
		return nil
	})
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction       domain.Auction
		status        int
		categoryID    sql.NullString
		highestBidder sql.NullString
		lastBidAt     sql.NullTime
		winnerBidID   sql.NullString
	)

	err := row.Scan(
		&auction.ID, &auction.Title, &auction.Description,
		&auction.StartPrice, &auction.CurrentPrice,
		&auction.StartTime, &auction.EndTime,
		&auction.SellerID, &categoryID, &status,
		&highestBidder, &lastBidAt, &winnerBidID,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	auction.CategoryID = categoryID.String
	auction.HighestBidderID = highestBidder.String
	auction.WinnerBidID = winnerBidID.String
	if lastBidAt.Valid {
		auction.LastBidAt = lastBidAt.Time
	}
	return &auction, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// auctionTx is the locked view of one auction inside WithAuction.
type auctionTx struct {
	tx      *sql.Tx
	auction *domain.Auction
}

func (t *auctionTx) Auction() *domain.Auction {
	return t.auction
}

func (t *auctionTx) Bids(ctx context.Context) ([]*domain.Bid, error) {
	return queryBids(ctx, t.tx, t.auction.ID)
}

func (t *auctionTx) CommitBid(ctx context.Context, bid *domain.Bid, endTime time.Time) error {
	if err := insertBid(ctx, t.tx, bid); err != nil {
		return fmt.Errorf("inserting bid: %w", err)
	}

	query := `
        UPDATE auctions
        SET current_price = ?, highest_bidder_id = ?, last_bid_at = ?, end_time = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `
	res, err := t.tx.ExecContext(ctx, query,
		bid.Amount, bid.BidderID, bid.Timestamp.UTC(), endTime.UTC(), bid.Timestamp.UTC(),
		t.auction.ID, int(domain.AuctionOpen))
	if err != nil {
		return fmt.Errorf("updating auction price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return domain.ErrAuctionNotOpen
	}

	t.auction.CurrentPrice = bid.Amount
	t.auction.HighestBidderID = bid.BidderID
	t.auction.LastBidAt = bid.Timestamp
	t.auction.EndTime = endTime
	t.auction.UpdatedAt = bid.Timestamp
	return nil
}

func (t *auctionTx) SettlementExists(ctx context.Context) (bool, error) {
	return settlementExists(ctx, t.tx, t.auction.ID)
}

func (t *auctionTx) CreateSettlement(ctx context.Context, settlement *domain.Settlement) error {
	return insertSettlement(ctx, t.tx, settlement)
}

func (t *auctionTx) CloseAuction(ctx context.Context, winnerBidID string) error {
	now := time.Now().UTC()
	query := `UPDATE auctions SET status = ?, winner_bid_id = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := t.tx.ExecContext(ctx, query,
		int(domain.AuctionClosed), nullString(winnerBidID), now,
		t.auction.ID, int(domain.AuctionOpen))
	if err != nil {
		return fmt.Errorf("closing auction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		if t.auction.Status == domain.AuctionClosed {
			return domain.ErrAlreadyClosed
		}
		return domain.ErrAuctionNotOpen
	}

	t.auction.Status = domain.AuctionClosed
	t.auction.WinnerBidID = winnerBidID
	t.auction.UpdatedAt = now
	return nil
}
