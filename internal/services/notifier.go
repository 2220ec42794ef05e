package services

import (
	"context"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

const deliveryTimeout = 5 * time.Second

type delivery struct {
	notification *domain.Notification
	toAdmins     bool
}

// Notifier delivers notifications on worker goroutines so callers never wait
// on the sink. Deliveries are best effort: a full queue drops the message
// and sink errors are only logged.
type Notifier struct {
	sink   domain.NotificationSink
	admins domain.AdminDirectory
	queue  chan delivery
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    logger.Logger
}

func NewNotifier(sink domain.NotificationSink, admins domain.AdminDirectory, queueSize, workers int, log logger.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}

	n := &Notifier{
		sink:   sink,
		admins: admins,
		queue:  make(chan delivery, queueSize),
		log:    log,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// NotifyUser queues a notification for a single user.
func (n *Notifier) NotifyUser(userID string, kind domain.NotificationKind, title, message, auctionID string) {
	n.dispatch(delivery{notification: newNotification(userID, kind, title, message, auctionID)})
}

// NotifyAdmins queues a notification that is fanned out to every admin when
// a worker picks it up.
func (n *Notifier) NotifyAdmins(kind domain.NotificationKind, title, message, auctionID string) {
	n.dispatch(delivery{notification: newNotification("", kind, title, message, auctionID), toAdmins: true})
}

func (n *Notifier) dispatch(d delivery) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.log.Warn("Notifier closed, dropping notification",
			"kind", d.notification.Kind, "auction_id", d.notification.RelatedAuctionID)
		return
	}

	select {
	case n.queue <- d:
	default:
		n.log.Warn("Notification queue full, dropping notification",
			"kind", d.notification.Kind, "user_id", d.notification.UserID,
			"auction_id", d.notification.RelatedAuctionID)
	}
}

// Close stops accepting notifications and waits for the queue to drain.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for d := range n.queue {
		n.deliver(d)
	}
}

func (n *Notifier) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if !d.toAdmins {
		n.send(ctx, d.notification)
		return
	}

	adminIDs, err := n.admins.AdminIDs(ctx)
	if err != nil {
		n.log.Error("Failed to resolve admin users", "error", err)
		return
	}
	for _, id := range adminIDs {
		msg := *d.notification
		msg.ID = utils.GenerateID("notif")
		msg.UserID = id
		n.send(ctx, &msg)
	}
}

func (n *Notifier) send(ctx context.Context, notification *domain.Notification) {
	if err := n.sink.Notify(ctx, notification); err != nil {
		n.log.Error("Failed to deliver notification", "error", err,
			"kind", notification.Kind, "user_id", notification.UserID)
	}
}

func newNotification(userID string, kind domain.NotificationKind, title, message, auctionID string) *domain.Notification {
	return &domain.Notification{
		ID:               utils.GenerateID("notif"),
		UserID:           userID,
		Kind:             kind,
		Title:            title,
		Message:          message,
		RelatedAuctionID: auctionID,
		CreatedAt:        time.Now().UTC(),
	}
}

// StaticAdmins is an AdminDirectory backed by a fixed list of user ids.
type StaticAdmins []string

func (s StaticAdmins) AdminIDs(ctx context.Context) ([]string, error) {
	return s, nil
}

// LogSink writes notifications to the log. It stands in for a real transport
// when none is configured.
type LogSink struct {
	Log logger.Logger
}

func (s LogSink) Notify(ctx context.Context, notification *domain.Notification) error {
	s.Log.Info("Notification",
		"user_id", notification.UserID, "kind", notification.Kind,
		"title", notification.Title, "auction_id", notification.RelatedAuctionID)
	return nil
}
