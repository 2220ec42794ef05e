package services

import (
	"time"

	"auction-marketplace/internal/domain"

	"github.com/shopspring/decimal"
)

// BidValidator holds the pricing rule and the ordered bid preconditions.
type BidValidator struct {
	minIncrement decimal.Decimal
}

func NewBidValidator(minIncrement decimal.Decimal) *BidValidator {
	return &BidValidator{minIncrement: minIncrement}
}

func (v *BidValidator) MinimumBid(currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Add(v.minIncrement)
}

func (v *BidValidator) ValidateIncrement(currentPrice, amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(v.MinimumBid(currentPrice))
}

// ValidateAmount checks that amount is positive and carries no fraction of
// a cent.
func (v *BidValidator) ValidateAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && domain.IsWholeCents(amount)
}

// ValidateAuctionWindow checks that the auction accepts bids at now.
func (v *BidValidator) ValidateAuctionWindow(auction *domain.Auction, now time.Time) error {
	if !auction.Status.IsBiddable() {
		return domain.ErrAuctionNotOpen
	}
	if now.Before(auction.StartTime) {
		return domain.ErrNotStarted
	}
	if !now.Before(auction.EndTime) {
		return domain.ErrEnded
	}
	return nil
}

// ValidateBid checks a bid against an auction row read under its lock. The
// checks run in a fixed order so every rejection maps to exactly one kind.
func (v *BidValidator) ValidateBid(auction *domain.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	if err := v.ValidateAuctionWindow(auction, now); err != nil {
		return err
	}
	if bidderID == auction.SellerID {
		return domain.ErrSelfBidForbidden
	}
	if !v.ValidateAmount(amount) {
		return domain.NewInvalidAmountError(v.MinimumBid(auction.CurrentPrice))
	}
	if !v.ValidateIncrement(auction.CurrentPrice, amount) {
		return domain.NewBidTooLowError(v.MinimumBid(auction.CurrentPrice))
	}
	return nil
}
