package services

import (
	"context"
	"fmt"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	"github.com/shopspring/decimal"
)

// AuctionDraft is the seller-supplied part of a new auction.
type AuctionDraft struct {
	Title       string
	Description string
	StartPrice  decimal.Decimal
	StartTime   time.Time
	EndTime     time.Time
	SellerID    string
	CategoryID  string
}

// AuctionService covers the administrative reads and writes around the
// bidding engine.
type AuctionService struct {
	ledger domain.Ledger
	log    logger.Logger
}

func NewAuctionService(ledger domain.Ledger, log logger.Logger) *AuctionService {
	return &AuctionService{ledger: ledger, log: log}
}

// CreateAuction stores a new auction in Pending status.
func (s *AuctionService) CreateAuction(ctx context.Context, draft AuctionDraft) (*domain.Auction, error) {
	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:           utils.GenerateID("auction"),
		Title:        draft.Title,
		Description:  draft.Description,
		StartPrice:   draft.StartPrice,
		CurrentPrice: draft.StartPrice,
		StartTime:    draft.StartTime.UTC().Truncate(time.Microsecond),
		EndTime:      draft.EndTime.UTC().Truncate(time.Microsecond),
		SellerID:     draft.SellerID,
		CategoryID:   draft.CategoryID,
		Status:       domain.AuctionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := auction.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAuction, err)
	}

	if err := s.ledger.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}
	s.log.Info("Auction created", "auction_id", auction.ID, "seller_id", auction.SellerID)
	return auction, nil
}

// UpdateStatus applies an administrative transition. Closing is not one of
// them; use AuctionCloser.CloseAuction.
func (s *AuctionService) UpdateStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	if err := s.ledger.UpdateAuctionStatus(ctx, auctionID, status); err != nil {
		return err
	}
	s.log.Info("Auction status updated", "auction_id", auctionID, "status", status.String())
	return nil
}

func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return s.ledger.GetAuction(ctx, auctionID)
}

func (s *AuctionService) GetSettlement(ctx context.Context, auctionID string) (*domain.Settlement, error) {
	return s.ledger.GetSettlement(ctx, auctionID)
}
