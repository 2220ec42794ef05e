package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/infrastructure/memory"
	"auction-marketplace/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	got  []*domain.Notification
	fail bool
}

func (s *recordingSink) Notify(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingSink) all() []*domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Notification, len(s.got))
	copy(out, s.got)
	return out
}

func (s *recordingSink) byKind(kind domain.NotificationKind) []*domain.Notification {
	var out []*domain.Notification
	for _, n := range s.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.SettlementEvent
}

func (p *recordingPublisher) PublishSettlement(ctx context.Context, e *domain.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedAuction(t *testing.T, ledger *memory.Ledger, id string, end time.Time) *domain.Auction {
	t.Helper()
	a := &domain.Auction{
		ID:           id,
		Title:        "Vintage camera",
		StartPrice:   decimal.NewFromInt(10),
		CurrentPrice: decimal.NewFromInt(10),
		StartTime:    baseTime.Add(-time.Hour),
		EndTime:      end,
		SellerID:     "seller",
		Status:       domain.AuctionOpen,
		CreatedAt:    baseTime.Add(-time.Hour),
		UpdatedAt:    baseTime.Add(-time.Hour),
	}
	require.NoError(t, ledger.CreateAuction(context.Background(), a))
	return a
}

// seedBid commits a bid directly, bypassing validation.
func seedBid(t *testing.T, ledger *memory.Ledger, auctionID, id, bidderID string, amount int64, ts time.Time) {
	t.Helper()
	err := ledger.WithAuction(context.Background(), auctionID, func(ctx context.Context, tx domain.AuctionTx) error {
		a := tx.Auction()
		return tx.CommitBid(ctx, &domain.Bid{
			ID: id, AuctionID: auctionID, BidderID: bidderID,
			Amount: decimal.NewFromInt(amount), Timestamp: ts,
		}, a.EndTime)
	})
	require.NoError(t, err)
}

type fixture struct {
	ledger   *memory.Ledger
	sink     *recordingSink
	notifier *Notifier
	bids     *BidService
	closer   *AuctionCloser
	pub      *recordingPublisher
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		ledger: memory.NewLedger(),
		sink:   &recordingSink{},
		pub:    &recordingPublisher{},
	}
	f.notifier = NewNotifier(f.sink, StaticAdmins{"admin1", "admin2"}, 64, 2, log)
	f.bids = NewBidService(f.ledger, NewBidValidator(decimal.NewFromInt(1)), f.notifier, 15*time.Second, log)
	f.bids.now = fixedClock(now)
	f.closer = NewAuctionCloser(f.ledger, f.notifier, f.pub, 4, time.Second, log)
	f.closer.now = fixedClock(now)
	return f
}

// flush waits for every queued notification to be delivered.
func (f *fixture) flush() {
	f.notifier.Close()
}
