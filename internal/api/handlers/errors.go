package handlers

import (
	"errors"
	"net/http"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	MinimumBid string `json:"minimum_bid,omitempty"`
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuctionNotOpen, domain.KindNotStarted, domain.KindEnded,
		domain.KindAlreadyClosed, domain.KindNotExpired, domain.KindSettlementConflict,
		domain.KindInvalidTransition:
		return http.StatusConflict
	case domain.KindSelfBidForbidden:
		return http.StatusForbidden
	case domain.KindBidTooLow:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidAmount, domain.KindInvalidAuction:
		return http.StatusBadRequest
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as JSON. Errors that are not domain errors are
// logged and reported without detail.
func writeError(c echo.Context, log logger.Logger, err error) error {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Error("Request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	resp := ErrorResponse{Error: err.Error(), Code: string(derr.Kind)}
	if !derr.MinimumBid.IsZero() {
		resp.MinimumBid = derr.MinimumBid.StringFixed(2)
	}
	return c.JSON(statusFor(derr.Kind), resp)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
