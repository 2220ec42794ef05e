package mysql

import (
	"context"
	"database/sql"

	"auction-marketplace/internal/domain"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func insertBid(ctx context.Context, tx *sql.Tx, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := tx.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.Timestamp.UTC())
	return err
}

func queryBids(ctx context.Context, q queryer, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY created_at ASC
    `
	rows, err := q.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.Timestamp); err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}

// ListBids returns the auction's bids in commit order.
func (r *MySQLLedger) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = ?)`, auctionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return queryBids(ctx, r.db, auctionID)
}
