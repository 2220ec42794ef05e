package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBidTooLowReportsMinimum(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.RequireFromString("10.50"))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	assert.Contains(t, err.Error(), "11.00")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.MinimumBid.Equal(decimal.NewFromInt(11)))

	a, err := f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(10)), "rejected bid must not move the price")

	bid, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	assert.Equal(t, "bob", bid.BidderID)

	a, err = f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, "bob", a.HighestBidderID)
}

func TestPlaceBidRejections(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	seedAuction(t, f.ledger, "ended", baseTime)
	ctx := context.Background()

	_, err := f.bids.PlaceBid(ctx, "seller", "a1", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, domain.ErrSelfBidForbidden)

	_, err = f.bids.PlaceBid(ctx, "bob", "missing", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.bids.PlaceBid(ctx, "bob", "ended", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, domain.ErrEnded)

	_, err = f.bids.PlaceBid(ctx, "bob", "a1", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.bids.PlaceBid(ctx, "bob", "missing", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bids, err := f.ledger.ListBids(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, bids)

	f.flush()
	assert.Empty(t, f.sink.all())
}

func TestPlaceBidRejectsFractionOfCent(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.RequireFromString("11.004"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.MinimumBid.Equal(decimal.NewFromInt(11)))

	a, err := f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(10)))

	_, err = f.bids.PlaceBid(ctx, "bob", "a1", decimal.RequireFromString("11.01"))
	require.NoError(t, err)

	// The reported minimum is always itself an acceptable bid.
	_, err = f.bids.PlaceBid(ctx, "carol", "a1", decimal.NewFromInt(12))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "12.01", derr.MinimumBid.StringFixed(2))
	assert.Contains(t, err.Error(), "12.01")

	bid, err := f.bids.PlaceBid(ctx, "carol", "a1", derr.MinimumBid)
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(decimal.RequireFromString("12.01")))
}

func TestPlaceBidExtensionBoundary(t *testing.T) {
	window := 15 * time.Second
	tests := []struct {
		name      string
		remaining time.Duration
		wantEnd   time.Duration
	}{
		{name: "exactly the window", remaining: window, wantEnd: window + window},
		{name: "one microsecond outside", remaining: window + time.Microsecond, wantEnd: window + time.Microsecond},
		{name: "one microsecond left", remaining: time.Microsecond, wantEnd: time.Microsecond + window},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := baseTime.Add(tt.remaining)
			f := newFixture(t, baseTime)
			seedAuction(t, f.ledger, "a1", end)

			_, err := f.bids.PlaceBid(context.Background(), "bob", "a1", decimal.NewFromInt(11))
			require.NoError(t, err)

			a, err := f.ledger.GetAuction(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, baseTime.Add(tt.wantEnd), a.EndTime)
		})
	}
}

func TestPlaceBidExtendsInsideWindow(t *testing.T) {
	end := baseTime.Add(5 * time.Second)
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", end)
	ctx := context.Background()

	_, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	a, err := f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, end.Add(15*time.Second), a.EndTime)

	// Still inside the window of the new end time, so it extends again.
	f.bids.now = fixedClock(end.Add(10 * time.Second))
	_, err = f.bids.PlaceBid(ctx, "carol", "a1", decimal.NewFromInt(12))
	require.NoError(t, err)
	a, err = f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, end.Add(30*time.Second), a.EndTime)
}

func TestPlaceBidOutsideWindowKeepsEndTime(t *testing.T) {
	end := baseTime.Add(time.Minute)
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", end)

	_, err := f.bids.PlaceBid(context.Background(), "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)

	a, err := f.ledger.GetAuction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, end, a.EndTime)
}

func TestPlaceBidTimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	ctx := context.Background()

	first, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	second, err := f.bids.PlaceBid(ctx, "carol", "a1", decimal.NewFromInt(12))
	require.NoError(t, err)

	assert.Equal(t, baseTime, first.Timestamp)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestPlaceBidNotifiesSellerAndOutbidBidder(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	_, err = f.bids.PlaceBid(ctx, "bob", "a1", decimal.NewFromInt(12))
	require.NoError(t, err)
	_, err = f.bids.PlaceBid(ctx, "carol", "a1", decimal.NewFromInt(13))
	require.NoError(t, err)
	f.flush()

	newBids := f.sink.byKind(domain.NotificationNewBid)
	require.Len(t, newBids, 3)
	for _, n := range newBids {
		assert.Equal(t, "seller", n.UserID)
		assert.Equal(t, "a1", n.RelatedAuctionID)
	}

	outbid := f.sink.byKind(domain.NotificationOutbid)
	require.Len(t, outbid, 1, "raising your own bid is not an outbid")
	assert.Equal(t, "bob", outbid[0].UserID)
}

func TestPlaceBidSucceedsWhenSinkFails(t *testing.T) {
	f := newFixture(t, baseTime)
	f.sink.fail = true
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))

	_, err := f.bids.PlaceBid(context.Background(), "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	f.flush()
}

func TestPlaceBidConcurrentNeverAcceptsStalePrice(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 11; i <= 30; i++ {
		wg.Add(1)
		go func(amount int) {
			defer wg.Done()
			_, _ = f.bids.PlaceBid(ctx, fmt.Sprintf("bidder%d", amount), "a1", decimal.NewFromInt(int64(amount)))
		}(i)
	}
	wg.Wait()

	a, err := f.ledger.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(30)))

	bids, err := f.ledger.ListBids(ctx, "a1")
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	price := decimal.NewFromInt(10)
	for _, b := range bids {
		assert.True(t, b.Amount.GreaterThanOrEqual(price.Add(decimal.NewFromInt(1))),
			"bid %s accepted against a stale price", b.Amount)
		price = b.Amount
	}
	assert.True(t, bids[len(bids)-1].Amount.Equal(a.CurrentPrice))
}

type flakyLedger struct {
	domain.Ledger
	mu       sync.Mutex
	failures int
	calls    int
}

func (l *flakyLedger) WithAuction(ctx context.Context, id string, fn func(ctx context.Context, tx domain.AuctionTx) error) error {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.failures
	l.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: deadlock", domain.ErrTransient)
	}
	return l.Ledger.WithAuction(ctx, id, fn)
}

func TestPlaceBidRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	log := logger.NewNop()

	flaky := &flakyLedger{Ledger: f.ledger, failures: 2}
	svc := NewBidService(flaky, NewBidValidator(decimal.NewFromInt(1)), f.notifier, 15*time.Second, log)
	svc.now = fixedClock(baseTime)

	_, err := svc.PlaceBid(context.Background(), "bob", "a1", decimal.NewFromInt(11))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)

	flaky.calls, flaky.failures = 0, maxCommitAttempts
	_, err = svc.PlaceBid(context.Background(), "bob", "a1", decimal.NewFromInt(12))
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, maxCommitAttempts, flaky.calls)
}

func TestListBidsRanksAndMasks(t *testing.T) {
	f := newFixture(t, baseTime)
	seedAuction(t, f.ledger, "a1", baseTime.Add(time.Hour))
	seedBid(t, f.ledger, "a1", "b1", "alice", 100, baseTime)
	seedBid(t, f.ledger, "a1", "b2", "bobby", 150, baseTime.Add(time.Second))
	seedBid(t, f.ledger, "a1", "b3", "carol", 150, baseTime.Add(2*time.Second))

	ranked, err := f.bids.ListBids(context.Background(), "a1", "carol")
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "b2", ranked[0].ID)
	assert.True(t, ranked[0].Winning)
	assert.Equal(t, "b***y", ranked[0].BidderID)

	assert.Equal(t, "b3", ranked[1].ID)
	assert.False(t, ranked[1].Winning)
	assert.Equal(t, "carol", ranked[1].BidderID)

	assert.Equal(t, "a***e", ranked[2].BidderID)

	_, err = f.bids.ListBids(context.Background(), "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
