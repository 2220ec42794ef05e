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

type AuctionHandler struct {
	auctions *services.AuctionService
	closer   *services.AuctionCloser
	log      logger.Logger
}

type CreateAuctionRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartPrice  decimal.Decimal `json:"start_price"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	SellerID    string          `json:"seller_id"`
	CategoryID  string          `json:"category_id"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AuctionResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartPrice      string    `json:"start_price"`
	CurrentPrice    string    `json:"current_price"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	SellerID        string    `json:"seller_id"`
	CategoryID      string    `json:"category_id,omitempty"`
	Status          string    `json:"status"`
	HighestBidderID string    `json:"highest_bidder_id,omitempty"`
	WinnerBidID     string    `json:"winner_bid_id,omitempty"`
}

type SettlementResponse struct {
	ID            string     `json:"id"`
	AuctionID     string     `json:"auction_id"`
	WinnerBidID   string     `json:"winner_bid_id"`
	WinnerID      string     `json:"winner_id"`
	Amount        string     `json:"amount"`
	PaymentStatus string     `json:"payment_status"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type CloseResponse struct {
	AuctionID    string `json:"auction_id"`
	Status       string `json:"status"`
	WinnerBidID  string `json:"winner_bid_id,omitempty"`
	SettlementID string `json:"settlement_id,omitempty"`
}

func NewAuctionHandler(auctions *services.AuctionService, closer *services.AuctionCloser, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		closer:   closer,
		log:      log,
	}
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctions.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, auctionResponse(auction))
}

func (h *AuctionHandler) GetSettlement(c echo.Context) error {
	s, err := h.auctions.GetSettlement(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, SettlementResponse{
		ID:            s.ID,
		AuctionID:     s.AuctionID,
		WinnerBidID:   s.WinnerBidID,
		WinnerID:      s.WinnerID,
		Amount:        s.Amount.StringFixed(2),
		PaymentStatus: string(s.PaymentStatus),
		CreatedAt:     s.CreatedAt,
		PaidAt:        s.PaidAt,
	})
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), services.AuctionDraft{
		Title:       req.Title,
		Description: req.Description,
		StartPrice:  req.StartPrice,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SellerID:    req.SellerID,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, auctionResponse(auction))
}

func (h *AuctionHandler) UpdateStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	status, ok := domain.ParseAuctionStatus(req.Status)
	if !ok {
		return badRequest(c, "unknown status")
	}

	ctx := c.Request().Context()
	if err := h.auctions.UpdateStatus(ctx, c.Param("id"), status); err != nil {
		return writeError(c, h.log, err)
	}

	auction, err := h.auctions.GetAuction(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, auctionResponse(auction))
}

// CloseAuction closes an expired auction now instead of waiting for the
// next sweep.
func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	result, err := h.closer.CloseAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := CloseResponse{
		AuctionID:   result.Auction.ID,
		Status:      result.Auction.Status.String(),
		WinnerBidID: result.Auction.WinnerBidID,
	}
	if result.Settlement != nil {
		resp.SettlementID = result.Settlement.ID
	}
	return c.JSON(http.StatusOK, resp)
}

func auctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		StartPrice:      a.StartPrice.StringFixed(2),
		CurrentPrice:    a.CurrentPrice.StringFixed(2),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		SellerID:        a.SellerID,
		CategoryID:      a.CategoryID,
		Status:          a.Status.String(),
		HighestBidderID: a.HighestBidderID,
		WinnerBidID:     a.WinnerBidID,
	}
}
