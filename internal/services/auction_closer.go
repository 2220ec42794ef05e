package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// CloseResult describes a close performed by this call. Settlement and
// WinningBid are nil when the auction had no bids.
type CloseResult struct {
	Auction    *domain.Auction
	WinningBid *domain.Bid
	Settlement *domain.Settlement
}

type SweepStats struct {
	Found   int
	Closed  int
	Skipped int
	Failed  int
}

type AuctionCloser struct {
	ledger         domain.Ledger
	notifier       *Notifier
	publisher      domain.SettlementPublisher
	concurrency    int
	auctionTimeout time.Duration
	now            func() time.Time
	log            logger.Logger
}

// NewAuctionCloser builds a closer. publisher may be nil when settlement
// events are not published.
func NewAuctionCloser(
	ledger domain.Ledger,
	notifier *Notifier,
	publisher domain.SettlementPublisher,
	concurrency int,
	auctionTimeout time.Duration,
	log logger.Logger,
) *AuctionCloser {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AuctionCloser{
		ledger:         ledger,
		notifier:       notifier,
		publisher:      publisher,
		concurrency:    concurrency,
		auctionTimeout: auctionTimeout,
		now:            time.Now,
		log:            log,
	}
}

// CloseAuction finalizes one expired auction. It returns ErrAlreadyClosed
// when another call got there first, which callers treat as success; only
// the call that performed the transition emits notifications.
func (c *AuctionCloser) CloseAuction(ctx context.Context, auctionID string) (*CloseResult, error) {
	var result *CloseResult
	err := c.ledger.WithAuction(ctx, auctionID, func(ctx context.Context, tx domain.AuctionTx) error {
		auction := tx.Auction()
		switch {
		case auction.Status == domain.AuctionClosed:
			return domain.ErrAlreadyClosed
		case auction.Status != domain.AuctionOpen:
			return domain.ErrAuctionNotOpen
		}

		// A bid may have extended the auction after it was listed as expired.
		now := c.now().UTC()
		if auction.EndTime.After(now) {
			return domain.ErrNotExpired
		}

		bids, err := tx.Bids(ctx)
		if err != nil {
			return fmt.Errorf("loading bids: %w", err)
		}

		res := &CloseResult{}
		winnerBidID := ""
		if winner := WinningBid(bids); winner != nil {
			res.WinningBid = winner
			winnerBidID = winner.ID

			exists, err := tx.SettlementExists(ctx)
			if err != nil {
				return fmt.Errorf("checking settlement: %w", err)
			}
			if exists {
				c.log.Warn("Settlement already exists for open auction", "auction_id", auctionID)
			} else {
				settlement := &domain.Settlement{
					ID:            utils.GenerateID("settlement"),
					AuctionID:     auctionID,
					WinnerBidID:   winner.ID,
					WinnerID:      winner.BidderID,
					Amount:        winner.Amount,
					PaymentStatus: domain.PaymentPending,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if err := tx.CreateSettlement(ctx, settlement); err != nil {
					return err
				}
				res.Settlement = settlement
			}
		}

		if err := tx.CloseAuction(ctx, winnerBidID); err != nil {
			return err
		}
		res.Auction = auction.Clone()
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("Auction closed", "auction_id", auctionID, "winner_bid_id", result.Auction.WinnerBidID)
	c.publishSettlement(ctx, result)
	c.notifyClosed(result)
	return result, nil
}

func (c *AuctionCloser) publishSettlement(ctx context.Context, result *CloseResult) {
	if c.publisher == nil || result.Settlement == nil {
		return
	}
	s := result.Settlement
	event := &domain.SettlementEvent{
		SettlementID: s.ID,
		AuctionID:    s.AuctionID,
		WinnerID:     s.WinnerID,
		Amount:       s.Amount,
		CreatedAt:    s.CreatedAt,
	}
	if err := c.publisher.PublishSettlement(ctx, event); err != nil {
		c.log.Error("Failed to publish settlement", "auction_id", s.AuctionID, "settlement_id", s.ID, "error", err)
	}
}

func (c *AuctionCloser) notifyClosed(result *CloseResult) {
	auction := result.Auction
	if result.WinningBid == nil {
		c.notifier.NotifyAdmins(domain.NotificationAuctionClosedNoBid,
			"Auction closed",
			fmt.Sprintf("Auction %q closed with no bids.", auction.Title),
			auction.ID)
		return
	}

	winner := result.WinningBid
	amount := winner.Amount.StringFixed(2)
	c.notifier.NotifyUser(winner.BidderID, domain.NotificationAuctionWon,
		"You won",
		fmt.Sprintf("You won %q with a bid of %s.", auction.Title, amount),
		auction.ID)
	c.notifier.NotifyAdmins(domain.NotificationAuctionClosed,
		"Auction closed",
		fmt.Sprintf("Auction %q closed, winner %s at %s.", auction.Title, winner.BidderID, amount),
		auction.ID)
}

// Sweep closes every open auction whose end time has passed. A failing
// auction is logged and left for the next sweep.
func (c *AuctionCloser) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	ids, err := c.ledger.GetExpiredOpenAuctions(ctx, c.now().UTC())
	if err != nil {
		return stats, fmt.Errorf("listing expired auctions: %w", err)
	}
	stats.Found = len(ids)
	if len(ids) == 0 {
		return stats, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			outcome := c.sweepOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case sweepClosed:
				stats.Closed++
			case sweepSkipped:
				stats.Skipped++
			default:
				stats.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info("Sweep finished", "found", stats.Found, "closed", stats.Closed,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

type sweepOutcome int

const (
	sweepClosed sweepOutcome = iota
	sweepSkipped
	sweepFailed
)

func (c *AuctionCloser) sweepOne(ctx context.Context, auctionID string) sweepOutcome {
	actx := ctx
	if c.auctionTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.auctionTimeout)
		defer cancel()
	}

	log := c.log.With("auction_id", auctionID)
	_, err := c.CloseAuction(actx, auctionID)
	switch {
	case err == nil:
		return sweepClosed
	case errors.Is(err, domain.ErrAlreadyClosed),
		errors.Is(err, domain.ErrNotExpired),
		errors.Is(err, domain.ErrAuctionNotOpen):
		log.Debug("Skipping auction", "reason", err.Error())
		return sweepSkipped
	default:
		log.Error("Failed to close auction", "error", err)
		return sweepFailed
	}
}
