// Package memory provides a process-local Ledger. It gives the same
// per-auction atomicity guarantees as the MySQL ledger and is used for tests
// and single-instance local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
)

type Ledger struct {
	mu          sync.RWMutex
	auctions    map[string]*domain.Auction
	bids        map[string][]*domain.Bid
	settlements map[string]*domain.Settlement

	// Held for the whole of WithAuction. Allocated by CreateAuction, so only
	// known auctions have one.
	locks map[string]*sync.Mutex
}

func NewLedger() *Ledger {
	return &Ledger{
		auctions:    make(map[string]*domain.Auction),
		bids:        make(map[string][]*domain.Bid),
		settlements: make(map[string]*domain.Settlement),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(auctionID string) (*sync.Mutex, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.locks[auctionID]
	return m, ok
}

func (l *Ledger) WithAuction(ctx context.Context, auctionID string, fn func(ctx context.Context, tx domain.AuctionTx) error) error {
	lock, ok := l.lockFor(auctionID)
	if !ok {
		return domain.ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	auction, ok := l.auctions[auctionID]
	var bids []*domain.Bid
	if ok {
		auction = auction.Clone()
		bids = append(bids, l.bids[auctionID]...)
	}
	_, settled := l.settlements[auctionID]
	l.mu.RUnlock()

	if !ok {
		return domain.ErrNotFound
	}

	tx := &auctionTx{auction: auction, bids: bids, settled: settled}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return l.apply(tx)
}

// apply publishes the staged writes of tx all at once.
func (l *Ledger) apply(tx *auctionTx) error {
	if !tx.dirty && len(tx.newBids) == 0 && tx.settlement == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := tx.auction.ID
	if tx.settlement != nil {
		if _, exists := l.settlements[id]; exists {
			return domain.ErrSettlementConflict
		}
		l.settlements[id] = tx.settlement
	}
	l.bids[id] = append(l.bids[id], tx.newBids...)
	l.auctions[id] = tx.auction
	return nil
}

func (l *Ledger) GetExpiredOpenAuctions(ctx context.Context, now time.Time) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var expired []*domain.Auction
	for _, a := range l.auctions {
		if a.Status == domain.AuctionOpen && !a.EndTime.After(now) {
			expired = append(expired, a)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EndTime.Before(expired[j].EndTime)
	})

	ids := make([]string, 0, len(expired))
	for _, a := range expired {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (l *Ledger) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.auctions[auction.ID] = auction.Clone()
	if _, ok := l.locks[auction.ID]; !ok {
		l.locks[auction.ID] = &sync.Mutex{}
	}
	return nil
}

func (l *Ledger) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.auctions[auctionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (l *Ledger) UpdateAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	return l.WithAuction(ctx, auctionID, func(ctx context.Context, tx domain.AuctionTx) error {
		t := tx.(*auctionTx)
		if !t.auction.Status.CanTransitionTo(status) {
			return domain.ErrInvalidTransition
		}
		t.auction.Status = status
		t.auction.UpdatedAt = time.Now().UTC()
		t.dirty = true
		return nil
	})
}

func (l *Ledger) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.auctions[auctionID]; !ok {
		return nil, domain.ErrNotFound
	}
	return copyBids(l.bids[auctionID]), nil
}

func (l *Ledger) GetSettlement(ctx context.Context, auctionID string) (*domain.Settlement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.settlements[auctionID]
	if !ok {
		return nil, domain.ErrSettlementNotFound
	}
	c := *s
	return &c, nil
}

func copyBids(bids []*domain.Bid) []*domain.Bid {
	out := make([]*domain.Bid, 0, len(bids))
	for _, b := range bids {
		c := *b
		out = append(out, &c)
	}
	return out
}

type auctionTx struct {
	auction    *domain.Auction
	bids       []*domain.Bid
	settled    bool
	newBids    []*domain.Bid
	settlement *domain.Settlement
	dirty      bool
}

func (t *auctionTx) Auction() *domain.Auction {
	return t.auction
}

func (t *auctionTx) Bids(ctx context.Context) ([]*domain.Bid, error) {
	all := append(copyBids(t.bids), copyBids(t.newBids)...)
	return all, nil
}

func (t *auctionTx) CommitBid(ctx context.Context, bid *domain.Bid, endTime time.Time) error {
	if t.auction.Status != domain.AuctionOpen {
		return domain.ErrAuctionNotOpen
	}
	c := *bid
	t.newBids = append(t.newBids, &c)
	t.auction.CurrentPrice = bid.Amount
	t.auction.HighestBidderID = bid.BidderID
	t.auction.LastBidAt = bid.Timestamp
	t.auction.EndTime = endTime
	t.auction.UpdatedAt = bid.Timestamp
	t.dirty = true
	return nil
}

func (t *auctionTx) SettlementExists(ctx context.Context) (bool, error) {
	return t.settled || t.settlement != nil, nil
}

func (t *auctionTx) CreateSettlement(ctx context.Context, settlement *domain.Settlement) error {
	if t.settled || t.settlement != nil {
		return domain.ErrSettlementConflict
	}
	c := *settlement
	t.settlement = &c
	return nil
}

func (t *auctionTx) CloseAuction(ctx context.Context, winnerBidID string) error {
	switch t.auction.Status {
	case domain.AuctionOpen:
	case domain.AuctionClosed:
		return domain.ErrAlreadyClosed
	default:
		return domain.ErrAuctionNotOpen
	}
	t.auction.Status = domain.AuctionClosed
	t.auction.WinnerBidID = winnerBidID
	t.auction.UpdatedAt = time.Now().UTC()
	t.dirty = true
	return nil
}
