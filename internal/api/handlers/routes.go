package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the public and admin API on e.
func RegisterRoutes(e *echo.Echo, bids *BidHandler, auctions *AuctionHandler) {
	api := e.Group("/api/v1")
	api.GET("/auctions/:id", auctions.GetAuction)
	api.GET("/auctions/:id/settlement", auctions.GetSettlement)
	api.POST("/auctions/:id/bids", bids.PlaceBid)
	api.GET("/auctions/:id/bids", bids.ListBids)

	admin := api.Group("/admin")
	admin.POST("/auctions", auctions.CreateAuction)
	admin.PUT("/auctions/:id/status", auctions.UpdateStatus)
	admin.POST("/auctions/:id/close", auctions.CloseAuction)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
}
