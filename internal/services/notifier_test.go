package services

import (
	"context"
	"errors"
	"testing"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSink struct {
	release chan struct{}
	sink    *recordingSink
}

func (s *blockingSink) Notify(ctx context.Context, n *domain.Notification) error {
	<-s.release
	return s.sink.Notify(ctx, n)
}

type brokenDirectory struct{}

func (brokenDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	return nil, errors.New("directory down")
}

func TestNotifierFansOutToAdmins(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(sink, StaticAdmins{"root", "ops"}, 8, 1, logger.NewNop())

	n.NotifyAdmins(domain.NotificationAuctionClosed, "Auction closed", "done", "a1")
	n.NotifyUser("bob", domain.NotificationOutbid, "Outbid", "again", "a1")
	n.Close()

	got := sink.all()
	require.Len(t, got, 3)
	assert.Equal(t, "root", got[0].UserID)
	assert.Equal(t, "ops", got[1].UserID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, "bob", got[2].UserID)
	assert.Equal(t, "a1", got[2].RelatedAuctionID)
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), sink: &recordingSink{}}
	n := NewNotifier(sink, StaticAdmins{}, 1, 1, logger.NewNop())

	// One message held by the worker, one in the queue, the rest dropped.
	for i := 0; i < 10; i++ {
		n.NotifyUser("bob", domain.NotificationNewBid, "New bid", "", "a1")
	}
	close(sink.release)
	n.Close()

	got := sink.sink.all()
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 2)
}

func TestNotifierSwallowsFailures(t *testing.T) {
	n := NewNotifier(&recordingSink{fail: true}, brokenDirectory{}, 4, 1, logger.NewNop())
	n.NotifyUser("bob", domain.NotificationNewBid, "New bid", "", "a1")
	n.NotifyAdmins(domain.NotificationAuctionClosed, "Auction closed", "", "a1")
	n.Close()

	// Dispatch after Close is dropped, not a panic.
	n.NotifyUser("bob", domain.NotificationNewBid, "New bid", "", "a1")
	n.Close()
}
