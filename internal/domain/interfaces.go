package domain

import (
	"context"
	"time"
)

// Ledger is the durable store of auctions, bids and settlements.
type Ledger interface {
	// WithAuction runs fn as one atomic unit holding an exclusive lock on the
	// auction row. Writes made through tx are committed iff fn returns nil.
	// Returns ErrNotFound when the auction does not exist.
	WithAuction(ctx context.Context, auctionID string, fn func(ctx context.Context, tx AuctionTx) error) error

	GetExpiredOpenAuctions(ctx context.Context, now time.Time) ([]string, error)
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	ListBids(ctx context.Context, auctionID string) ([]*Bid, error)
	GetSettlement(ctx context.Context, auctionID string) (*Settlement, error)
}

// AuctionTx is the view of one locked auction inside Ledger.WithAuction.
type AuctionTx interface {
	// Auction returns the row as read under the lock.
	Auction() *Auction
	Bids(ctx context.Context) ([]*Bid, error)
	// CommitBid appends bid and moves the auction's price, highest bidder,
	// last bid time and end time in the same unit.
	CommitBid(ctx context.Context, bid *Bid, endTime time.Time) error
	SettlementExists(ctx context.Context) (bool, error)
	CreateSettlement(ctx context.Context, settlement *Settlement) error
	// CloseAuction moves the auction from Open to Closed. winnerBidID is
	// empty when the auction closed without bids.
	CloseAuction(ctx context.Context, winnerBidID string) error
}

// Notification interfaces
type NotificationSink interface {
	Notify(ctx context.Context, notification *Notification) error
}

type NotificationSubscriber interface {
	SubscribeToNotifications(ctx context.Context, handler NotificationHandler) error
}

type NotificationHandler func(notification *Notification) error

type AdminDirectory interface {
	AdminIDs(ctx context.Context) ([]string, error)
}

type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, event *SettlementEvent) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
}

type ConnectionManager interface {
	RegisterConnection(userID string, conn WebSocketConnection) error
	UnregisterConnection(userID string, conn WebSocketConnection) error
	GetConnectionsForUser(userID string) []WebSocketConnection
	NotifyUser(userID string, message interface{}) error
	CloseAll() error
}
