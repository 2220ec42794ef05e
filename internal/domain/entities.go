package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale = 2

// IsWholeCents reports whether d fits MoneyScale without rounding.
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

type Auction struct {
	ID              string
	Title           string
	Description     string
	StartPrice      decimal.Decimal
	CurrentPrice    decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	SellerID        string
	CategoryID      string
	Status          AuctionStatus
	HighestBidderID string
	LastBidAt       time.Time
	WinnerBidID     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the invariants a new auction must satisfy.
func (a *Auction) Validate() error {
	if a.SellerID == "" {
		return errors.New("seller id is empty")
	}
	if !a.StartPrice.IsPositive() {
		return errors.New("starting price must be positive")
	}
	if !IsWholeCents(a.StartPrice) {
		return errors.New("starting price must not have fractions of a cent")
	}
	if a.CurrentPrice.LessThan(a.StartPrice) {
		return errors.New("current price must not be below starting price")
	}
	if !a.EndTime.After(a.StartTime) {
		return errors.New("end time must be after start time")
	}
	return nil
}

// Clone returns a copy that can be mutated without affecting the receiver.
func (a *Auction) Clone() *Auction {
	c := *a
	return &c
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionOpen
	AuctionClosed
	AuctionSuspended
	AuctionDeleted
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionOpen:
		return "open"
	case AuctionClosed:
		return "closed"
	case AuctionSuspended:
		return "suspended"
	case AuctionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// IsBiddable reports whether bids may be accepted in this status.
func (s AuctionStatus) IsBiddable() bool {
	return s == AuctionOpen
}

// CanTransitionTo reports whether an administrative action may move an
// auction from s to next. Closing is reserved for the auction closer and
// Closed and Deleted are terminal.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case AuctionPending:
		return next == AuctionOpen || next == AuctionDeleted
	case AuctionOpen:
		return next == AuctionSuspended || next == AuctionDeleted
	case AuctionSuspended:
		return next == AuctionOpen || next == AuctionDeleted
	default:
		return false
	}
}

func ParseAuctionStatus(s string) (AuctionStatus, bool) {
	switch s {
	case "pending":
		return AuctionPending, true
	case "open":
		return AuctionOpen, true
	case "closed":
		return AuctionClosed, true
	case "suspended":
		return AuctionSuspended, true
	case "deleted":
		return AuctionDeleted, true
	default:
		return AuctionPending, false
	}
}

// Bid is append-only: once committed it is never mutated.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// RankedBid is the read-side view returned by bid listings.
type RankedBid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Winning   bool            `json:"winning"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentShipped   PaymentStatus = "shipped"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Settlement struct {
	ID            string
	AuctionID     string
	WinnerBidID   string
	WinnerID      string
	Amount        decimal.Decimal
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	PaidAt        *time.Time
	ShippedAt     *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

type NotificationKind string

const (
	NotificationNewBid             NotificationKind = "new_bid"
	NotificationOutbid             NotificationKind = "outbid"
	NotificationAuctionWon         NotificationKind = "auction_won"
	NotificationAuctionClosed      NotificationKind = "auction_closed"
	NotificationAuctionClosedNoBid NotificationKind = "auction_closed_no_bids"
)

type Notification struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Kind             NotificationKind `json:"kind"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	RelatedAuctionID string           `json:"related_auction_id"`
	CreatedAt        time.Time        `json:"created_at"`
}

// SettlementEvent is what downstream payment collection consumes.
type SettlementEvent struct {
	SettlementID string          `json:"settlement_id"`
	AuctionID    string          `json:"auction_id"`
	WinnerID     string          `json:"winner_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}
