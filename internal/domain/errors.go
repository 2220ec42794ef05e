package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindAuctionNotOpen     ErrorKind = "auction_not_open"
	KindNotStarted         ErrorKind = "not_started"
	KindEnded              ErrorKind = "ended"
	KindSelfBidForbidden   ErrorKind = "self_bid_forbidden"
	KindBidTooLow          ErrorKind = "bid_too_low"
	KindInvalidAmount      ErrorKind = "invalid_amount"
	KindAlreadyClosed      ErrorKind = "already_closed"
	KindNotExpired         ErrorKind = "not_expired"
	KindSettlementConflict ErrorKind = "settlement_conflict"
	KindInvalidTransition  ErrorKind = "invalid_transition"
	KindTransient          ErrorKind = "transient"
	KindInvalidAuction     ErrorKind = "invalid_auction"
)

// Error is the typed error returned by the bidding and closing engine.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind       ErrorKind
	Message    string
	MinimumBid decimal.Decimal
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "auction not found"}
	ErrAuctionNotOpen     = &Error{Kind: KindAuctionNotOpen, Message: "auction is not open for bidding"}
	ErrNotStarted         = &Error{Kind: KindNotStarted, Message: "auction has not started yet"}
	ErrEnded              = &Error{Kind: KindEnded, Message: "auction has ended"}
	ErrSelfBidForbidden   = &Error{Kind: KindSelfBidForbidden, Message: "sellers cannot bid on their own auction"}
	ErrBidTooLow          = &Error{Kind: KindBidTooLow, Message: "bid too low"}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount, Message: "bid amount must be positive and in whole cents"}
	ErrAlreadyClosed      = &Error{Kind: KindAlreadyClosed, Message: "auction is already closed"}
	ErrNotExpired         = &Error{Kind: KindNotExpired, Message: "auction end time has not passed"}
	ErrSettlementConflict = &Error{Kind: KindSettlementConflict, Message: "settlement already exists for auction"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Message: "invalid auction status transition"}

	ErrTransient          = &Error{Kind: KindTransient, Message: "transient ledger failure, retry"}
	ErrSettlementNotFound = &Error{Kind: KindNotFound, Message: "settlement not found"}
	ErrInvalidAuction     = &Error{Kind: KindInvalidAuction, Message: "invalid auction"}
)

// NewBidTooLowError reports the minimum amount the caller can retry with.
func NewBidTooLowError(minimum decimal.Decimal) *Error {
	return &Error{
		Kind:       KindBidTooLow,
		Message:    fmt.Sprintf("bid too low: minimum acceptable bid is %s", minimum.StringFixed(2)),
		MinimumBid: minimum,
	}
}

// NewInvalidAmountError rejects a malformed amount and still reports the
// minimum the caller can retry with.
func NewInvalidAmountError(minimum decimal.Decimal) *Error {
	return &Error{
		Kind:       KindInvalidAmount,
		Message:    fmt.Sprintf("bid amount must be positive and in whole cents: minimum acceptable bid is %s", minimum.StringFixed(2)),
		MinimumBid: minimum,
	}
}

// KindOf returns the kind of a domain error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
