package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	"github.com/shopspring/decimal"
)

// maxCommitAttempts bounds retries of a bid whose commit lost a lock race.
const maxCommitAttempts = 3

type BidService struct {
	ledger          domain.Ledger
	validator       *BidValidator
	notifier        *Notifier
	extensionWindow time.Duration
	now             func() time.Time
	log             logger.Logger
}

func NewBidService(
	ledger domain.Ledger,
	validator *BidValidator,
	notifier *Notifier,
	extensionWindow time.Duration,
	log logger.Logger,
) *BidService {
	return &BidService{
		ledger:          ledger,
		validator:       validator,
		notifier:        notifier,
		extensionWindow: extensionWindow,
		now:             time.Now,
		log:             log,
	}
}

// placement is what a committed bid leaves behind for the notifications.
type placement struct {
	bid            *domain.Bid
	previousBidder string
	sellerID       string
	title          string
}

// PlaceBid validates and commits one bid. Rejections leave the ledger
// untouched; a lost lock race is retried against freshly read state.
func (s *BidService) PlaceBid(ctx context.Context, bidderID, auctionID string, amount decimal.Decimal) (*domain.Bid, error) {
	s.log.Debug("Placing bid", "auction_id", auctionID, "bidder_id", bidderID, "amount", amount.String())

	var (
		p   *placement
		err error
	)
	for attempt := 1; ; attempt++ {
		p, err = s.commitBid(ctx, bidderID, auctionID, amount)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrTransient) || attempt >= maxCommitAttempts || ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("Retrying bid after transient ledger failure",
			"auction_id", auctionID, "attempt", attempt, "error", err)
	}

	s.log.Info("Bid accepted", "auction_id", auctionID, "bid_id", p.bid.ID,
		"bidder_id", bidderID, "amount", p.bid.Amount.String())
	s.notifyBidPlaced(p)
	return p.bid, nil
}

func (s *BidService) commitBid(ctx context.Context, bidderID, auctionID string, amount decimal.Decimal) (*placement, error) {
	var p *placement
	err := s.ledger.WithAuction(ctx, auctionID, func(ctx context.Context, tx domain.AuctionTx) error {
		auction := tx.Auction()
		now := s.now().UTC().Truncate(time.Microsecond)

		if err := s.validator.ValidateBid(auction, bidderID, amount, now); err != nil {
			return err
		}

		// Bid timestamps are strictly increasing per auction even when the
		// clock does not advance between two commits.
		ts := now
		if !auction.LastBidAt.IsZero() {
			if floor := auction.LastBidAt.Add(time.Microsecond); ts.Before(floor) {
				ts = floor
			}
		}

		endTime := auction.EndTime
		if endTime.Sub(now) <= s.extensionWindow {
			endTime = endTime.Add(s.extensionWindow)
			s.log.Info("Extending auction", "auction_id", auctionID, "end_time", endTime)
		}

		bid := &domain.Bid{
			ID:        utils.GenerateID("bid"),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: ts,
		}
		previous := auction.HighestBidderID
		if err := tx.CommitBid(ctx, bid, endTime); err != nil {
			return err
		}

		p = &placement{
			bid:            bid,
			previousBidder: previous,
			sellerID:       auction.SellerID,
			title:          auction.Title,
		}
		return nil
	})
	return p, err
}

func (s *BidService) notifyBidPlaced(p *placement) {
	amount := p.bid.Amount.StringFixed(2)
	s.notifier.NotifyUser(p.sellerID, domain.NotificationNewBid,
		"New bid",
		fmt.Sprintf("A bid of %s was placed on %q.", amount, p.title),
		p.bid.AuctionID)

	if p.previousBidder != "" && p.previousBidder != p.bid.BidderID {
		s.notifier.NotifyUser(p.previousBidder, domain.NotificationOutbid,
			"You have been outbid",
			fmt.Sprintf("Someone bid %s on %q.", amount, p.title),
			p.bid.AuctionID)
	}
}

// ListBids returns the auction's bids ranked best first. Only the top bid is
// flagged winning and bidder ids other than viewerID are masked.
func (s *BidService) ListBids(ctx context.Context, auctionID, viewerID string) ([]*domain.RankedBid, error) {
	bids, err := s.ledger.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	ranked := RankBids(bids)
	out := make([]*domain.RankedBid, 0, len(ranked))
	for i, bid := range ranked {
		bidderID := bid.BidderID
		if viewerID == "" || bidderID != viewerID {
			bidderID = MaskBidderID(bidderID)
		}
		out = append(out, &domain.RankedBid{
			ID:        bid.ID,
			AuctionID: bid.AuctionID,
			BidderID:  bidderID,
			Amount:    bid.Amount,
			Timestamp: bid.Timestamp,
			Winning:   i == 0,
		})
	}
	return out, nil
}
