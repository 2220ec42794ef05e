package handlers

import (
	"net/http"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type BidHandler struct {
	bids *services.BidService
	log  logger.Logger
}

type PlaceBidRequest struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type BidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type RankedBidResponse struct {
	BidResponse
	Winning bool `json:"winning"`
}

func NewBidHandler(bids *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{bids: bids, log: log}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.BidderID == "" {
		return badRequest(c, "bidder_id is required")
	}

	bid, err := h.bids.PlaceBid(c.Request().Context(), req.BidderID, auctionID, req.Amount)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, BidResponse{
		ID:        bid.ID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount.StringFixed(2),
		Timestamp: bid.Timestamp,
	})
}

func (h *BidHandler) ListBids(c echo.Context) error {
	ranked, err := h.bids.ListBids(c.Request().Context(), c.Param("id"), c.QueryParam("viewer_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := make([]RankedBidResponse, 0, len(ranked))
	for _, b := range ranked {
		resp = append(resp, rankedBidResponse(b))
	}
	return c.JSON(http.StatusOK, resp)
}

func rankedBidResponse(b *domain.RankedBid) RankedBidResponse {
	return RankedBidResponse{
		BidResponse: BidResponse{
			ID:        b.ID,
			AuctionID: b.AuctionID,
			BidderID:  b.BidderID,
			Amount:    b.Amount.StringFixed(2),
			Timestamp: b.Timestamp,
		},
		Winning: b.Winning,
	}
}
